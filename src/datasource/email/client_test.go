package email

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"RideGap/src/storage"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const sampleCSV = "Request id,Pickup point,Driver id,Status,Request timestamp,Drop timestamp\n" +
	"619,Airport,1,Trip Completed,11-07-2016 11:51:00,11-07-2016 13:00:00\n" +
	"3112,City,NA,No Cars Available,13-07-2016 04:22:00,NA\n"

type fakeMailService struct {
	emails       []*Email
	connectErr   error
	fetchErr     error
	disconnected bool
}

func (f *fakeMailService) Connect() error { return f.connectErr }
func (f *fakeMailService) Disconnect()    { f.disconnected = true }
func (f *fakeMailService) FetchLatest(keyword string) (*Email, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return filterLatestTargetEmail(f.emails, keyword), nil
}

func quietLogger() *storage.Logger { return storage.NewWriterLogger(io.Discard) }

func TestFilterLatestTargetEmail(t *testing.T) {
	base := time.Date(2016, 7, 11, 8, 0, 0, 0, time.UTC)
	emails := []*Email{
		{UID: 1, Subject: "Request Data week 1", Date: base},
		{UID: 2, Subject: "Lunch", Date: base.Add(3 * time.Hour)},
		{UID: 3, Subject: "Request Data week 2", Date: base.Add(time.Hour)},
	}
	got := filterLatestTargetEmail(emails, "Request Data")
	require.NotNil(t, got)
	assert.Equal(t, uint32(3), got.UID)

	assert.Nil(t, filterLatestTargetEmail(emails, "nothing"))
	assert.Nil(t, filterLatestTargetEmail(nil, "Request Data"))
}

func TestDecodeHeaderGBK(t *testing.T) {
	raw, err := simplifiedchinese.GBK.NewEncoder().String("打车请求数据")
	require.NoError(t, err)
	encoded := "=?GBK?B?" + base64.StdEncoding.EncodeToString([]byte(raw)) + "?="

	assert.Equal(t, "打车请求数据", decodeHeader(encoded))
	assert.Equal(t, "plain subject", decodeHeader("plain subject"))
	assert.Equal(t, "=?bogus", decodeHeader("=?bogus"))
}

func TestParseEmail(t *testing.T) {
	raw := strings.Join([]string{
		"From: Ops <ops@example.com>",
		"To: analyst@example.com",
		"Subject: Request Data 2016-07",
		"Date: Mon, 11 Jul 2016 10:00:00 +0800",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="XYZ"`,
		"",
		"--XYZ",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"see attachment",
		"--XYZ",
		"Content-Type: text/csv",
		`Content-Disposition: attachment; filename="requests.csv"`,
		"",
		strings.TrimSuffix(strings.ReplaceAll(sampleCSV, "\n", "\r\n"), "\r\n"),
		"--XYZ--",
		"",
	}, "\r\n")

	section := &imap.BodySectionName{}
	msg := &imap.Message{
		Uid:  42,
		Body: map[*imap.BodySectionName]imap.Literal{section: bytes.NewBufferString(raw)},
	}

	email, err := parseEmail(msg, section)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), email.UID)
	assert.Equal(t, "Request Data 2016-07", email.Subject)
	assert.Equal(t, 2016, email.Date.Year())
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "requests.csv", email.Attachments[0].Filename)
	assert.Contains(t, string(email.Attachments[0].Content), "3112,City,NA,No Cars Available")
}

func TestEnvelopeEmail(t *testing.T) {
	raw, err := simplifiedchinese.GBK.NewEncoder().String("打车请求数据")
	require.NoError(t, err)
	sent := time.Date(2016, 7, 11, 10, 0, 0, 0, time.UTC)
	msg := &imap.Message{
		Uid:          9,
		InternalDate: sent.Add(time.Minute),
		Envelope: &imap.Envelope{
			Date:    sent,
			Subject: "=?GBK?B?" + base64.StdEncoding.EncodeToString([]byte(raw)) + "?=",
			From:    []*imap.Address{{PersonalName: "Ops", MailboxName: "ops", HostName: "example.com"}},
		},
	}

	e := envelopeEmail(msg)
	assert.Equal(t, uint32(9), e.UID)
	assert.Equal(t, sent, e.Date)
	assert.Equal(t, "打车请求数据", e.Subject)
	assert.Equal(t, "Ops <ops@example.com>", e.From)
	assert.Empty(t, e.Attachments)

	// 没有信封日期时用服务器接收时间
	bare := envelopeEmail(&imap.Message{Uid: 3, InternalDate: sent})
	assert.Equal(t, sent, bare.Date)
	assert.Empty(t, bare.Subject)
}

func TestParseEmailWithoutBody(t *testing.T) {
	_, err := parseEmail(&imap.Message{}, &imap.BodySectionName{})
	assert.Error(t, err)
}

func TestCheckAndProcessEmails(t *testing.T) {
	svc := &fakeMailService{emails: []*Email{
		{UID: 7, Subject: "Request Data", Date: time.Now()},
		{UID: 8, Subject: "Lunch", Date: time.Now().Add(time.Hour)},
	}}
	got, err := CheckAndProcessEmails(svc, "Request Data", quietLogger())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(7), got.UID)
	assert.True(t, svc.disconnected)

	got, err = CheckAndProcessEmails(&fakeMailService{}, "Request Data", quietLogger())
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = CheckAndProcessEmails(&fakeMailService{connectErr: errors.New("refused")}, "x", quietLogger())
	assert.ErrorContains(t, err, "refused")

	_, err = CheckAndProcessEmails(&fakeMailService{fetchErr: errors.New("timeout")}, "x", quietLogger())
	assert.ErrorContains(t, err, "timeout")
}
