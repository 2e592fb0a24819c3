package inbound

import (
	"context"
	"errors"
	"net/mail"
	"testing"
	"time"

	"campaignready/internal/domain"
	"campaignready/internal/metrics"
	"campaignready/internal/store"

	"github.com/emersion/go-imap/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailbox struct {
	messages []Message
	fetchErr error
	seen     []imap.UID
	fetches  int
}

func (f *fakeMailbox) FetchUnseen(context.Context) ([]Message, error) {
	f.fetches++
	return f.messages, f.fetchErr
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uids []imap.UID) error {
	f.seen = append(f.seen, uids...)
	return nil
}

type fakeRegenerator struct {
	calls []string
	err   error
}

func (f *fakeRegenerator) Regenerate(_ context.Context, scanID string) (domain.Report, error) {
	f.calls = append(f.calls, scanID)
	if f.err != nil {
		return domain.Report{}, f.err
	}
	return domain.Report{ScanID: scanID, Verdict: domain.RiskLow}, nil
}

func seededStore(t *testing.T) *store.ScanStore {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	doc := domain.NewScanDocument("scan-1", time.Now(), domain.ScanInputs{
		WebsiteURL:   "https://shop.example",
		SendingEmail: "news@shop.example",
	}, "eu-west")
	doc.EmailScan.Checks.MTASTS = &domain.MTASTSCheck{Present: domain.Bool(true)}
	require.NoError(t, st.Save(doc.ScanID, doc))
	return st
}

func verifyMessage(uid imap.UID, to, authResults string) Message {
	h := mail.Header{"To": {to}, "From": {"news@shop.example"}}
	if authResults != "" {
		h["Authentication-Results"] = []string{authResults}
	}
	return Message{UID: uid, Header: h}
}

func TestPollOnceAppliesVerificationMail(t *testing.T) {
	st := seededStore(t)
	mb := &fakeMailbox{messages: []Message{
		verifyMessage(7, "verify+scan-1@inbound.example", "mx; dkim=pass header.d=shop.example header.s=k1; spf=pass smtp.mailfrom=shop.example; dmarc=pass policy.p=reject"),
	}}
	regen := &fakeRegenerator{}
	m := metrics.New(prometheus.NewRegistry())

	p := NewPoller(mb, st, regen, "Inbound.Example", WithMetrics(m))
	applied, err := p.PollOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, []imap.UID{7}, mb.seen)
	assert.Equal(t, []string{"scan-1"}, regen.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundMessages.WithLabelValues(resultApplied)))

	var doc domain.ScanDocument
	found, err := st.Load("scan-1", &doc)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, doc.EmailScan.DKIMPresent())
	assert.Equal(t, domain.AlignmentAligned, doc.EmailScan.DKIMAlignment())
	assert.Equal(t, domain.PolicyReject, doc.EmailScan.DMARCPolicy())
	assert.True(t, doc.EmailScan.MTASTSPresent(), "existing evidence survives the patch")

	evts, err := st.Events("scan-1")
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "inbound_received", evts[0]["type"])
}

func TestPollOnceMarksUnmatchedAndUnknownSeen(t *testing.T) {
	st := seededStore(t)
	mb := &fakeMailbox{messages: []Message{
		verifyMessage(1, "hello@inbound.example", ""),
		verifyMessage(2, "verify+missing@inbound.example", "mx; spf=pass"),
	}}
	regen := &fakeRegenerator{}

	applied, err := NewPoller(mb, st, regen, "inbound.example").PollOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Equal(t, []imap.UID{1, 2}, mb.seen)
	assert.Empty(t, regen.calls)
}

func TestPollOnceLeavesFailedMessagesUnseen(t *testing.T) {
	st := seededStore(t)
	mb := &fakeMailbox{messages: []Message{
		verifyMessage(3, "verify+scan-1@inbound.example", "mx; spf=pass"),
	}}
	regen := &fakeRegenerator{err: errors.New("boom")}

	applied, err := NewPoller(mb, st, regen, "inbound.example").PollOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Zero(t, applied)
	assert.Empty(t, mb.seen)
}

func TestPollOnceFetchError(t *testing.T) {
	mb := &fakeMailbox{fetchErr: errors.New("imap down")}

	_, err := NewPoller(mb, seededStore(t), &fakeRegenerator{}, "inbound.example").PollOnce(context.Background())

	require.EqualError(t, err, "imap down")
}

func TestRunPollsOnceAndStopsWithContext(t *testing.T) {
	mb := &fakeMailbox{}
	p := NewPoller(mb, seededStore(t), &fakeRegenerator{}, "inbound.example")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 1, mb.fetches)
}
