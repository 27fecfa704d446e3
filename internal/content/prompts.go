package content

import (
	"fmt"
	"strings"

	"foreversister/internal/external"
	"foreversister/internal/types"
)

// baseNegativePrompt is appended to the model-derived negative prompt for
// general segments to suppress known failure modes of the image model
// (broken anatomy, watermarks, photorealism). Birthday segments use the
// model's negative prompt unmodified.
const baseNegativePrompt = "(worst quality, low quality, normal quality:1.4), (deformed, distorted, disfigured:1.3), poorly drawn, bad anatomy, wrong anatomy, extra limb, missing limb, floating limbs, disconnected limbs, mutation, mutated, ugly, disgusting, amputation, bad hands, missing fingers, extra digit, fewer digits, fused fingers, too many fingers, long neck, text, words, logo, watermark, signature, username, blurry, grainy, jpeg artifacts, scan, oversaturated, contrast, overexposure, underexposure, 3d, cgi, render, cartoon, anime, 2.5d, photorealistic, realism, real life,"

// systemPrompt fixes the writing persona and tone. Only the salutation
// varies; everything else about the voice is constant.
func systemPrompt(salutation types.Salutation) string {
	return fmt.Sprintf("假如你是一个和%s分居两地的妹妹，你写邮件时的落款为“你永远的，妹妹”。根据指令内容给你的%s写一封中文邮件，要使用信件的格式，内容可以俏皮可爱一些，你习惯自称妹妹，输出使用纯文本格式，不要使用markdown格式，直接输出邮件的内容，不要输出标题。", salutation, salutation)
}

// generalUserPrompt builds the user instruction for a general segment:
// the date, the theme label, and the formatted upcoming-events list.
func generalUserPrompt(dateCN string, salutation types.Salutation, theme types.Theme, upcoming []types.UpcomingEvent) string {
	return fmt.Sprintf("今天是%s。接下来一周的节日或节气：%s。请你给你的%s写一封中文%s邮件，表达对%s的思念和祝福，内容要温馨亲切，包含生活细节、小故事或新的视角，保持温柔亲密。日期仅供作为背景信息参考，不用刻意在邮件中提及。",
		dateCN, formatUpcoming(upcoming), salutation, theme, salutation)
}

// birthdayUserPrompt builds the user instruction for a birthday cohort.
// The age is current year minus birth year; 0 when the year is unknown.
func birthdayUserPrompt(salutation types.Salutation, age int) string {
	return fmt.Sprintf("今天是你%s的%d岁生日。请你写一封生日祝福邮件，内容要真挚感人，表达出你对%s的爱和祝福。", salutation, age, salutation)
}

// imagePromptMessages asks the model to translate the finished mail body
// into a {prompt, negative_prompt} pair for the image model. The call is
// made in JSON mode so the response is a single decodable object.
func imagePromptMessages(text string) []external.ChatMessage {
	return []external.ChatMessage{
		{
			Role:    "user",
			Content: fmt.Sprintf("以下是一封生日祝福邮件：\n%s\n为这封邮件生成一段提示词，用于stable diffusion的文生图，要求生成的图片应该是二次元动漫插画风格的，并且画面主体是一名白发、红瞳的少女，即邮件中的妹妹。以json格式直接回答指令的内容，字段`prompt`表示正向提示词，`negative_prompt`表示负面提示词。示例：{'prompt': '', 'negative_prompt': ''}", text),
		},
	}
}

// titleMessages asks the model for a short subject line derived from the
// mail body. Used for general segments on ordinary days; event days use
// the templated event subject instead.
func titleMessages(text string) []external.ChatMessage {
	return []external.ChatMessage{
		{
			Role:    "user",
			Content: fmt.Sprintf("以下是一封邮件：\n%s\n为这封邮件生成一个标题，标题要简洁、明了，能够准确描述邮件的内容。直接输出标题，不要输出任何其他内容。", text),
		},
	}
}

// formatUpcoming renders the upcoming-events list as "name(date)" pairs
// joined with Chinese commas, or "无" when the window is empty.
func formatUpcoming(upcoming []types.UpcomingEvent) string {
	if len(upcoming) == 0 {
		return "无"
	}
	parts := make([]string, 0, len(upcoming))
	for _, u := range upcoming {
		parts = append(parts, u.Name+"("+u.Date+")")
	}
	return strings.Join(parts, "，")
}
