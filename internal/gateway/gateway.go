// Package gateway turns transport updates into job commands and interactive
// agent requests. All command parsing happens after unicode normalization;
// replies go back through the same adapter that produced the update.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobbot/internal/commands"
	"jobbot/internal/engine"
	"jobbot/internal/history"
	"jobbot/internal/jobs"
	"jobbot/internal/transport"
	"jobbot/pkg/logx"
)

type Config struct {
	BusyMessage string
}

type Gateway struct {
	cfg     Config
	store   *jobs.Store
	hist    *history.Store
	engine  *engine.Engine
	adapter transport.Adapter
	log     logx.Logger

	now func() time.Time
}

func New(cfg Config, store *jobs.Store, hist *history.Store, eng *engine.Engine, adapter transport.Adapter, log logx.Logger) *Gateway {
	return &Gateway{
		cfg:     cfg,
		store:   store,
		hist:    hist,
		engine:  eng,
		adapter: adapter,
		log:     log.With(logx.String("component", "gateway")),
		now:     time.Now,
	}
}

// Run consumes updates until ctx is done. Commands are handled inline so
// they stay responsive while a job holds the gate; interactive requests run
// in their own goroutine and wait their turn.
func (g *Gateway) Run(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if upd.Kind != transport.UpdateMessage || upd.Message == nil {
				continue
			}
			g.handleMessage(ctx, *upd.Message)
		}
	}
}

func (g *Gateway) handleMessage(ctx context.Context, msg transport.Message) {
	text := strings.TrimSpace(commands.FoldInput(msg.Text))
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		g.reply(ctx, msg, g.handleCommand(ctx, msg, text))
		return
	}
	// Claim the turn on the dispatch path so two back-to-back conversational
	// messages reach the agent in arrival order, then answer off it.
	turn := g.engine.ClaimInteractive()
	go g.handleInteractive(ctx, msg, text, turn)
}

func (g *Gateway) handleInteractive(ctx context.Context, msg transport.Message, text string, turn *engine.InteractiveTurn) {
	if turn.Queued() {
		g.reply(ctx, msg, g.cfg.BusyMessage)
	}
	res, err := turn.Execute(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			g.log.Error("interactive request failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
			g.reply(ctx, msg, "すみません、応答の生成に失敗しました。")
		}
		return
	}
	g.reply(ctx, msg, res.Output)
}

func (g *Gateway) handleCommand(ctx context.Context, msg transport.Message, text string) string {
	op, args, err := commands.ParseCommand(text)
	if err != nil {
		var unrec *commands.UnrecognizedError
		if errors.As(err, &unrec) {
			return fmt.Sprintf("不明なコマンドです: %s\n%s", unrec.Token, commands.Usage())
		}
		return fmt.Sprintf("コマンドを解釈できません: %v", err)
	}

	switch op {
	case commands.OpCreate:
		return g.create(ctx, msg, args)
	case commands.OpList:
		return g.list(ctx)
	case commands.OpPause:
		return g.setEnabled(ctx, args, false)
	case commands.OpResume:
		return g.setEnabled(ctx, args, true)
	case commands.OpDelete:
		return g.delete(ctx, args)
	case commands.OpRunNow:
		return g.runNow(ctx, args)
	}
	return commands.Usage()
}

func (g *Gateway) create(ctx context.Context, msg transport.Message, args commands.Args) string {
	name := args.Name
	if name == "" {
		name = generateJobName(g.now())
	}
	j, err := g.store.Create(ctx, jobs.CreateSpec{
		Name:             name,
		Description:      args.Description,
		Prompt:           args.Prompt,
		Schedule:         args.Schedule,
		Timezone:         args.Timezone,
		CreatedBy:        strconv.FormatInt(msg.FromID, 10),
		CreatedChannelID: strconv.FormatInt(msg.ChatID, 10),
	})
	if err != nil {
		var verr *jobs.ValidationError
		if errors.As(err, &verr) {
			return "ジョブ定義が不正です:\n- " + strings.Join(verr.Reasons, "\n- ")
		}
		g.log.Error("job create failed", logx.String("job", name), logx.Err(err))
		return "ジョブの登録に失敗しました。"
	}
	loc, _ := j.Location()
	next := j.Rule.Next(g.now(), loc)
	return fmt.Sprintf("定期ジョブを登録しました: `%s`(%s、次回 %s)",
		j.Name, j.Schedule, next.Format("2006-01-02 15:04"))
}

func (g *Gateway) list(ctx context.Context) string {
	all, broken := g.store.LoadAll(ctx)
	if len(all) == 0 && len(broken) == 0 {
		return "定期ジョブはありません。"
	}

	var b strings.Builder
	b.WriteString("定期ジョブ一覧:")
	for _, j := range all {
		b.WriteString("\n- `" + j.Name + "` " + j.Schedule)
		if !j.Enabled {
			b.WriteString("(停止中)")
		}
		if !j.Valid() {
			b.WriteString("(不正: " + strings.Join(j.InvalidReasons, "; ") + ")")
			continue
		}
		if last := g.lastRun(ctx, j.Name); last != "" {
			b.WriteString(" 前回 " + last)
		}
	}
	for _, le := range broken {
		b.WriteString("\n- " + le.File + "(読み込み不可: " + le.Err.Error() + ")")
	}
	return b.String()
}

func (g *Gateway) lastRun(ctx context.Context, name string) string {
	if g.hist == nil {
		return ""
	}
	recs, err := g.hist.List(ctx, name, 1)
	if err != nil || len(recs) == 0 {
		return ""
	}
	return recs[0].EndedAt.Local().Format("01-02 15:04") + " " + string(recs[0].Outcome)
}

func (g *Gateway) setEnabled(ctx context.Context, args commands.Args, enabled bool) string {
	name, errMsg := targetName(args)
	if errMsg != "" {
		return errMsg
	}
	if _, err := g.store.SetEnabled(ctx, name, enabled); err != nil {
		return jobError(name, err)
	}
	if enabled {
		return fmt.Sprintf("ジョブを再開しました: `%s`", name)
	}
	return fmt.Sprintf("ジョブを一時停止しました: `%s`", name)
}

func (g *Gateway) delete(ctx context.Context, args commands.Args) string {
	name, errMsg := targetName(args)
	if errMsg != "" {
		return errMsg
	}
	if err := g.store.Delete(ctx, name); err != nil {
		return jobError(name, err)
	}
	return fmt.Sprintf("ジョブを削除しました: `%s`", name)
}

func (g *Gateway) runNow(ctx context.Context, args commands.Args) string {
	name, errMsg := targetName(args)
	if errMsg != "" {
		return errMsg
	}
	if err := g.engine.RunNow(ctx, name); err != nil {
		return jobError(name, err)
	}
	return fmt.Sprintf("ジョブの実行を開始します: `%s`", name)
}

func targetName(args commands.Args) (string, string) {
	if args.Name != "" {
		return args.Name, ""
	}
	if len(args.Positional) > 0 {
		return args.Positional[0], ""
	}
	return "", "ジョブ名を指定してください。"
}

func jobError(name string, err error) string {
	var nf *jobs.NotFoundError
	if errors.As(err, &nf) {
		return fmt.Sprintf("ジョブが見つかりません: %s", name)
	}
	var verr *jobs.ValidationError
	if errors.As(err, &verr) {
		return "ジョブ定義が不正です:\n- " + strings.Join(verr.Reasons, "\n- ")
	}
	return fmt.Sprintf("操作に失敗しました: %v", err)
}

func (g *Gateway) reply(ctx context.Context, msg transport.Message, text string) {
	if text == "" {
		return
	}
	err := g.adapter.SendText(ctx, transport.ChatTarget{ChatID: msg.ChatID}, text, nil)
	if err != nil && ctx.Err() == nil {
		g.log.Error("reply failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
	}
}

// generateJobName builds a slug for creates that omit name=. The timestamp
// keeps names readable; the suffix keeps two creates in the same second from
// colliding.
func generateJobName(now time.Time) string {
	return "job-" + now.Format("20060102-150405") + "-" + uuid.NewString()[:8]
}
