package delivery

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/go-gomail/gomail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foreversister/internal/types"
)

// --- Mocks ---

type sentMail struct {
	from string
	to   []string
	body string
}

// fakeSendCloser records every message written to the connection.
type fakeSendCloser struct {
	sent    []sentMail
	sendErr error
	closed  bool
}

func (f *fakeSendCloser) Send(from string, to []string, msg io.WriterTo) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return err
	}
	f.sent = append(f.sent, sentMail{from: from, to: append([]string(nil), to...), body: buf.String()})
	return nil
}

func (f *fakeSendCloser) Close() error {
	f.closed = true
	return nil
}

type fakeDialer struct {
	conn    *fakeSendCloser
	dialErr error
	dials   int
}

func (f *fakeDialer) Dial() (gomail.SendCloser, error) {
	f.dials++
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return f.conn, nil
}

// fakeCache is a scripted CacheReader.
type fakeCache struct {
	doc     *types.DayCache
	readErr error
	sent    map[string]bool
}

func newFakeCache(doc *types.DayCache) *fakeCache {
	return &fakeCache{doc: doc, sent: make(map[string]bool)}
}

func (f *fakeCache) Read(string) (*types.DayCache, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.doc, nil
}

func (f *fakeCache) WasSent(date string) bool { return f.sent[date] }

func (f *fakeCache) MarkSent(date string) error {
	f.sent[date] = true
	return nil
}

func newTestSender(dialer MailDialer, cache CacheReader) *Sender {
	return NewSender(dialer, cache, SenderConfig{
		FromEmail: "sister@example.com",
		FromName:  "YourForeverSister",
	})
}

// --- Tests ---

func TestSend_NoCacheMeansNoIO(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeSendCloser{}}
	sender := newTestSender(dialer, newFakeCache(nil))

	sent, err := sender.Send(context.Background(), "2025-09-01")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Zero(t, dialer.dials, "no cache must mean no SMTP connection")
}

func TestSend_DeliversEveryItemOverOneConnection(t *testing.T) {
	conn := &fakeSendCloser{}
	dialer := &fakeDialer{conn: conn}
	cache := newFakeCache(&types.DayCache{
		Date: "2025-09-01",
		Items: []types.CacheItem{
			{
				Kind:       types.SegmentGeneral,
				Salutation: types.SalutationBrother,
				Recipients: []string{"a@test.com", "b@test.com"},
				Subject:    "中秋节快乐！",
				Text:       "亲爱的哥哥，见字如面。",
			},
			{
				Kind:       types.SegmentBirthday,
				Salutation: types.SalutationSister,
				Recipients: []string{"c@test.com"},
				Subject:    "生日快乐！",
				Text:       "三十岁生日快乐。",
			},
		},
	})

	sender := newTestSender(dialer, cache)
	sent, err := sender.Send(context.Background(), "2025-09-01")
	require.NoError(t, err)
	assert.True(t, sent)

	assert.Equal(t, 1, dialer.dials)
	require.Len(t, conn.sent, 2)

	first := conn.sent[0]
	assert.Equal(t, "sister@example.com", first.from)
	// Envelope recipients: the visible To (sender itself) plus the BCC list.
	assert.ElementsMatch(t, []string{"sister@example.com", "a@test.com", "b@test.com"}, first.to)
	// BCC addresses never appear in the message headers.
	assert.NotContains(t, first.body, "a@test.com")
	assert.Contains(t, first.body, "Subject:")

	assert.True(t, cache.sent["2025-09-01"], "sent marker written after a clean run")
	assert.True(t, conn.closed)
}

func TestSend_AlreadySentSkips(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeSendCloser{}}
	cache := newFakeCache(&types.DayCache{
		Date:  "2025-09-01",
		Items: []types.CacheItem{{Recipients: []string{"a@test.com"}, Subject: "s", Text: "t"}},
	})
	cache.sent["2025-09-01"] = true

	sender := newTestSender(dialer, cache)
	sent, err := sender.Send(context.Background(), "2025-09-01")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Zero(t, dialer.dials)
}

func TestSend_FailureAbortsAndLeavesNoMarker(t *testing.T) {
	conn := &fakeSendCloser{sendErr: errors.New("smtp rejected")}
	dialer := &fakeDialer{conn: conn}
	cache := newFakeCache(&types.DayCache{
		Date: "2025-09-01",
		Items: []types.CacheItem{
			{Recipients: []string{"a@test.com"}, Subject: "一", Text: "一"},
			{Recipients: []string{"b@test.com"}, Subject: "二", Text: "二"},
		},
	})

	sender := newTestSender(dialer, cache)
	sent, err := sender.Send(context.Background(), "2025-09-01")
	require.Error(t, err)
	assert.False(t, sent)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUpstreamMail, appErr.Code)

	assert.False(t, cache.sent["2025-09-01"], "failed run must not write the sent marker")
}

func TestSend_DialFailure(t *testing.T) {
	dialer := &fakeDialer{dialErr: errors.New("connection refused")}
	cache := newFakeCache(&types.DayCache{
		Date:  "2025-09-01",
		Items: []types.CacheItem{{Recipients: []string{"a@test.com"}, Subject: "s", Text: "t"}},
	})

	sender := newTestSender(dialer, cache)
	_, err := sender.Send(context.Background(), "2025-09-01")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUpstreamMail, appErr.Code)
}

func TestSend_EmptyDocumentMarksWithoutSending(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeSendCloser{}}
	cache := newFakeCache(&types.DayCache{Date: "2025-09-01"})

	sender := newTestSender(dialer, cache)
	sent, err := sender.Send(context.Background(), "2025-09-01")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Zero(t, dialer.dials)
	assert.True(t, cache.sent["2025-09-01"])
}

func TestSendVerification(t *testing.T) {
	conn := &fakeSendCloser{}
	dialer := &fakeDialer{conn: conn}

	sender := newTestSender(dialer, newFakeCache(nil))
	err := sender.SendVerification(context.Background(), "a@test.com", "123456", "subscribe")
	require.NoError(t, err)

	require.Len(t, conn.sent, 1)
	assert.Equal(t, []string{"a@test.com"}, conn.sent[0].to)
	assert.Contains(t, conn.sent[0].body, "123456")
}

func TestHTMLBody(t *testing.T) {
	body := htmlBody("第一行\n第二行 <tag>", "img.png")
	assert.Contains(t, body, `src="cid:img.png"`)
	assert.Contains(t, body, "第一行<br>第二行")
	// HTML in the text must be escaped.
	assert.NotContains(t, body, "<tag>")
}
