// Package approval drives a digest from creation to the reader's decision and
// answers the chat commands that operate on the latest digest.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsDigest/internal/digest"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
)

const (
	historyLimit = 7
	topLimit     = 5
)

// Options configures a Workflow.
type Options struct {
	// ChatID is the only destination allowed to drive decisions.
	ChatID       string
	MessageLimit int
	Location     *time.Location
	Logger       *slog.Logger
}

// Workflow is the approval state machine. Digests enter as pending or
// skipped; only a pending digest may move, and only once.
type Workflow struct {
	store    ports.Store
	notifier ports.Notifier
	trigger  ports.RunTrigger
	chatID   string
	limit    int
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a Workflow. A nil notifier or empty chat id means the outbound
// channel is not configured and every digest is skipped.
func New(store ports.Store, notifier ports.Notifier, trigger ports.RunTrigger, opts Options) *Workflow {
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = DefaultMessageLimit
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Workflow{
		store:    store,
		notifier: notifier,
		trigger:  trigger,
		chatID:   strings.TrimSpace(opts.ChatID),
		limit:    opts.MessageLimit,
		loc:      opts.Location,
		logger:   logging.OrDiscard(opts.Logger),
		now:      time.Now,
	}
}

// SetTrigger attaches the run trigger used by the refresh command.
func (w *Workflow) SetTrigger(trigger ports.RunTrigger) {
	w.trigger = trigger
}

// ChannelConfigured reports whether previews can be delivered.
func (w *Workflow) ChannelConfigured() bool {
	return w.notifier != nil && w.chatID != ""
}

// InitialStatus picks the entry state of a freshly built digest.
func (w *Workflow) InitialStatus(d domain.Digest) domain.DigestStatus {
	if d.Empty() || !w.ChannelConfigured() {
		return domain.DigestSkipped
	}
	return domain.DigestPending
}

// Open persists a freshly built digest and, when it is pending, dispatches the
// preview. A persistence failure is returned and nothing is sent; a failed
// preview is logged and leaves the digest pending.
func (w *Workflow) Open(ctx context.Context, d domain.Digest) (domain.Digest, error) {
	d.Status = w.InitialStatus(d)
	if d.CreatedAt.IsZero() {
		d.CreatedAt = w.now()
	}
	d.UpdatedAt = d.CreatedAt

	if err := w.store.CreateDigest(ctx, d); err != nil {
		return d, fmt.Errorf("persist digest %s: %w", d.RunID, err)
	}
	metrics.RecordDecision(string(d.Status))

	if !w.ChannelConfigured() {
		w.logger.Warn("outbound channel not configured, digest skipped", "run_id", d.RunID)
		return d, nil
	}

	text := "✅ <b>No new actionable updates today.</b>"
	if d.Status == domain.DigestPending {
		text = digest.Preview(d.Items)
	}
	if err := w.notifier.PublishMessage(ctx, w.chatID, text); err != nil {
		w.logger.Error("send preview", "run_id", d.RunID, "error", err)
	}
	return d, nil
}

// Handle dispatches one inbound message. Messages from other chats and
// unknown text are ignored. Non-decision commands pass through cooldown.
func (w *Workflow) Handle(ctx context.Context, chatID, text string, cooldown *Cooldown) error {
	if w.chatID == "" || strings.TrimSpace(chatID) != w.chatID {
		return nil
	}

	cmd := ParseCommand(text)
	if cmd.Kind == CommandUnknown {
		return nil
	}
	if !cmd.Decision() && cooldown != nil && !cooldown.Allow(chatID) {
		w.logger.Debug("command throttled", "chat_id", chatID)
		return nil
	}

	switch cmd.Kind {
	case CommandApprove:
		return w.Approve(ctx)
	case CommandReject:
		return w.Reject(ctx)
	case CommandDetails:
		return w.Details(ctx, cmd.Index)
	case CommandFeedback:
		return w.Feedback(ctx, cmd.Index, cmd.Text)
	case CommandRefresh:
		return w.Refresh(ctx)
	case CommandStatus:
		return w.Status(ctx)
	case CommandHistory:
		return w.History(ctx)
	case CommandTop:
		return w.Top(ctx)
	case CommandHelp:
		return w.reply(ctx, helpText)
	}
	return nil
}

// Approve flips the most recent pending digest to sent and flushes its body.
// Older pending digests are superseded and never flushed.
func (w *Workflow) Approve(ctx context.Context) error {
	d, err := w.store.LatestDigest(ctx, domain.DigestPending)
	if errors.Is(err, ports.ErrNotFound) {
		return w.reply(ctx, "No pending digest found. The next run is scheduled.")
	}
	if err != nil {
		return fmt.Errorf("load pending digest: %w", err)
	}

	changed, err := w.store.TransitionDigest(ctx, d.RunID, domain.DigestPending, domain.DigestSent, w.now())
	if err != nil {
		return fmt.Errorf("mark digest %s sent: %w", d.RunID, err)
	}
	if !changed {
		return w.reply(ctx, "This digest was already handled.")
	}
	metrics.RecordDecision(string(domain.DigestSent))

	for _, chunk := range SplitMessage(d.Body, w.limit) {
		chunk = strings.Trim(chunk, "\n")
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		if err := w.notifier.PublishMessage(ctx, w.chatID, chunk); err != nil {
			if rErr := w.reply(ctx, deliveryFailedText); rErr != nil {
				w.logger.Error("notify delivery failure", "run_id", d.RunID, "error", rErr)
			}
			return fmt.Errorf("flush digest %s: %w", d.RunID, err)
		}
	}
	return nil
}

// Reject marks every pending digest rejected.
func (w *Workflow) Reject(ctx context.Context) error {
	n, err := w.store.RejectPending(ctx, w.now())
	if err != nil {
		return fmt.Errorf("reject pending digests: %w", err)
	}
	if n == 0 {
		return w.reply(ctx, "No pending digest found.")
	}
	for i := 0; i < n; i++ {
		metrics.RecordDecision(string(domain.DigestRejected))
	}
	return w.reply(ctx, "Digest skipped. See you at the next scheduled run! ✅")
}

// Details sends the full view of item n of the latest sent or pending digest.
func (w *Workflow) Details(ctx context.Context, n int) error {
	if n <= 0 {
		return w.reply(ctx, "Usage: <b>details 1</b> (replace 1 with item number)")
	}
	d, ok, err := w.latestActive(ctx)
	if err != nil || !ok {
		return err
	}
	if n > len(d.Items) {
		return w.reply(ctx, fmt.Sprintf("Item %d not found. Digest has %d items.", n, len(d.Items)))
	}
	return w.reply(ctx, digest.Detail(n, d.Items[n-1]))
}

// Feedback records free-text feedback against item n of the latest sent or pending digest.
func (w *Workflow) Feedback(ctx context.Context, n int, text string) error {
	if n <= 0 || strings.TrimSpace(text) == "" {
		return w.reply(ctx, "Usage: <b>feedback 1 too generic</b>")
	}
	d, ok, err := w.latestActive(ctx)
	if err != nil || !ok {
		return err
	}
	if n > len(d.Items) {
		return w.reply(ctx, fmt.Sprintf("Item %d not found. Digest has %d items.", n, len(d.Items)))
	}
	if err := w.store.SetFeedback(ctx, d.Items[n-1].URL, text); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("store feedback: %w", err)
	}
	return w.reply(ctx, fmt.Sprintf("Thanks! Feedback noted for item %d 👍", n))
}

// Refresh starts an on-demand run.
func (w *Workflow) Refresh(ctx context.Context) error {
	if w.trigger == nil {
		return w.reply(ctx, "Refresh is not available right now.")
	}

	_, err := w.trigger.Trigger(ctx, domain.OriginTelegramRefresh)
	if errors.Is(err, ports.ErrRunInProgress) {
		elapsed := 0
		if run, rErr := w.store.LatestRun(ctx); rErr == nil && run.Status == domain.RunRunning {
			elapsed = int(w.now().Sub(run.StartedAt).Seconds())
		}
		return w.reply(ctx, fmt.Sprintf(
			"⏳ A run is already in progress (started %ds ago).\nYou'll get a digest preview shortly, no need to refresh again.", elapsed))
	}
	if err != nil {
		return fmt.Errorf("trigger refresh: %w", err)
	}
	return w.reply(ctx, "🔄 <b>Refreshing now...</b>\n<i>Fetching latest news from all sources. You'll get a preview shortly.</i>")
}

// Status reports the last run and whether a digest awaits a decision.
func (w *Workflow) Status(ctx context.Context) error {
	run, err := w.store.LatestRun(ctx)
	hasRun := err == nil
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("load latest run: %w", err)
	}

	_, err = w.store.LatestDigest(ctx, domain.DigestPending)
	pending := err == nil
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("load pending digest: %w", err)
	}

	items, err := w.store.CountItems(ctx)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	runs, err := w.store.CountRuns(ctx)
	if err != nil {
		return fmt.Errorf("count runs: %w", err)
	}

	return w.reply(ctx, statusText(run, hasRun, pending, items, runs))
}

// History lists the most recent digests.
func (w *Workflow) History(ctx context.Context) error {
	digests, err := w.store.ListDigests(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("list digests: %w", err)
	}
	if len(digests) == 0 {
		return w.reply(ctx, "No digest history yet. Send /refresh to run now!")
	}
	return w.reply(ctx, historyText(digests, w.loc))
}

// Top re-sends the most credible items of the latest sent or pending digest.
func (w *Workflow) Top(ctx context.Context) error {
	d, err := w.store.LatestDigest(ctx, domain.DigestSent, domain.DigestPending)
	if errors.Is(err, ports.ErrNotFound) {
		return w.reply(ctx, "No digest available yet. Send /refresh to fetch the latest news!")
	}
	if err != nil {
		return fmt.Errorf("load latest digest: %w", err)
	}
	if len(d.Items) == 0 {
		return w.reply(ctx, "No articles in the latest digest.")
	}
	return w.reply(ctx, topText(d, topLimit, w.loc))
}

func (w *Workflow) latestActive(ctx context.Context) (domain.Digest, bool, error) {
	d, err := w.store.LatestDigest(ctx, domain.DigestSent, domain.DigestPending)
	if errors.Is(err, ports.ErrNotFound) {
		return domain.Digest{}, false, w.reply(ctx, "No recent digest found.")
	}
	if err != nil {
		return domain.Digest{}, false, fmt.Errorf("load latest digest: %w", err)
	}
	return d, true, nil
}

func (w *Workflow) reply(ctx context.Context, text string) error {
	if !w.ChannelConfigured() {
		return nil
	}
	if err := w.notifier.PublishMessage(ctx, w.chatID, text); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}
