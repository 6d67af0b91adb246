package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/adamavenir/huddle/internal/core"
	"github.com/adamavenir/huddle/internal/session"
	"github.com/adamavenir/huddle/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [channel]",
		Short: "Stream a channel's messages and reactions in real time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			ref := ""
			if len(args) > 0 {
				ref = args[0]
			}
			channel, err := ctx.Channel(cmd.Context(), ref)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			last, _ := cmd.Flags().GetInt("last")
			addr, _ := cmd.Flags().GetString("metrics-addr")
			if addr == "" {
				addr = ctx.Config.Metrics.Addr
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := session.NewMetrics(reg)
			if addr != "" {
				shutdown := serveMetrics(addr, reg, ctx.Logger)
				defer shutdown()
			}

			viewer := types.Participant{}
			if user, err := ctx.User(cmd.Context()); err == nil {
				viewer = user
			}
			changes := make(chan session.ChangeKind, 64)
			mgr := session.NewManager(session.Deps{
				Messages:  ctx.Repo,
				Reactions: ctx.Repo,
				Directory: ctx.Repo,
				Feed:      ctx.Drivers.Source,
			}, session.Options{
				Self:     viewer,
				PageSize: ctx.Config.PageSize,
				Logger:   ctx.Logger,
				Metrics:  metrics,
				Observer: func(_ string, kind session.ChangeKind) {
					select {
					case changes <- kind:
					default:
					}
				},
			})
			defer mgr.Close()

			sess, err := mgr.SelectChannel(runCtx, channel.ID)
			if err != nil && sess == nil {
				return writeCommandError(cmd, err)
			}
			if err != nil {
				ctx.Logger.Warn("initial page failed; waiting for live updates", zap.Error(err))
			}

			w := newWatcher(cmd.OutOrStdout(), sess, ctx.JSONMode)
			w.printRecent(last)
			if !ctx.JSONMode {
				state := ""
				if sess.FeedState() != session.Active {
					state = ", live updates unavailable"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "--- watching #%s (Ctrl+C to stop%s) ---\n", channel.Name, state)
			}

			for {
				select {
				case <-runCtx.Done():
					return nil
				case kind := <-changes:
					w.apply(kind)
				}
			}
		},
	}
	cmd.Flags().Int("last", 10, "show the last N messages before streaming")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

type watchEvent struct {
	Event     string                `json:"event"`
	Message   *types.Message        `json:"message,omitempty"`
	MessageID string                `json:"message_id,omitempty"`
	Reactions []types.ReactionGroup `json:"reactions,omitempty"`
}

// watcher prints the difference between successive session snapshots.
type watcher struct {
	out       io.Writer
	sess      *session.Session
	jsonMode  bool
	shown     map[string]types.Message
	reactions map[string]string
}

func newWatcher(out io.Writer, sess *session.Session, jsonMode bool) *watcher {
	return &watcher{
		out:       out,
		sess:      sess,
		jsonMode:  jsonMode,
		shown:     make(map[string]types.Message),
		reactions: make(map[string]string),
	}
}

func (w *watcher) printRecent(last int) {
	msgs := w.sess.Messages()
	start := 0
	if last >= 0 && len(msgs) > last {
		start = len(msgs) - last
	}
	for i, msg := range msgs {
		w.shown[msg.ID] = msg
		w.reactions[msg.ID] = reactionKey(w.sess.ReactionsFor(msg.ID))
		if i >= start {
			w.emit("message", msg)
		}
	}
}

// apply diffs the session against what was printed. Observer changes can be
// dropped under load, so every change rechecks messages and reactions.
func (w *watcher) apply(kind session.ChangeKind) {
	if kind == session.ChangeTyping || kind == session.ChangeMentions {
		return
	}
	current := make(map[string]struct{})
	for _, msg := range w.sess.Messages() {
		current[msg.ID] = struct{}{}
		prev, ok := w.shown[msg.ID]
		w.shown[msg.ID] = msg
		switch {
		case !ok:
			w.reactions[msg.ID] = reactionKey(w.sess.ReactionsFor(msg.ID))
			w.emit("message", msg)
		case prev.Content != msg.Content || !sameMetadata(prev, msg):
			w.emit("message.updated", msg)
		}
	}
	for id := range w.shown {
		if _, ok := current[id]; !ok {
			delete(w.shown, id)
			delete(w.reactions, id)
			w.emitRemoved(id)
		}
	}
	for id := range w.shown {
		groups := w.sess.ReactionsFor(id)
		key := reactionKey(groups)
		if key == w.reactions[id] {
			continue
		}
		w.reactions[id] = key
		w.emitReactions(id, groups)
	}
}

func (w *watcher) emit(event string, msg types.Message) {
	if w.jsonMode {
		_ = writeJSON(w.out, watchEvent{Event: event, Message: &msg})
		return
	}
	line := formatMessage(msg, w.sess.DisplayName, nil)
	if event == "message.updated" {
		line += " (edited)"
	}
	fmt.Fprintln(w.out, line)
}

func (w *watcher) emitRemoved(id string) {
	if w.jsonMode {
		_ = writeJSON(w.out, watchEvent{Event: "message.deleted", MessageID: id})
		return
	}
	fmt.Fprintf(w.out, "#%s deleted\n", core.ShortID(id))
}

func (w *watcher) emitReactions(id string, groups []types.ReactionGroup) {
	if w.jsonMode {
		_ = writeJSON(w.out, watchEvent{Event: "reactions", MessageID: id, Reactions: groups})
		return
	}
	if len(groups) == 0 {
		fmt.Fprintf(w.out, "#%s reactions cleared\n", core.ShortID(id))
		return
	}
	fmt.Fprintf(w.out, "#%s reactions: %s\n", core.ShortID(id), reactionKey(groups))
}

func reactionKey(groups []types.ReactionGroup) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf("%s %d", g.Emoji, len(g.UserIDs)))
	}
	return strings.Join(parts, "  ")
}

func sameMetadata(a, b types.Message) bool {
	ea, errA := types.EncodeMetadata(a.Metadata)
	eb, errB := types.EncodeMetadata(b.Metadata)
	return errA == nil && errB == nil && string(ea) == string(eb)
}
