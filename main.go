package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	convox "github.com/vollybot/vollybot/agent/convo"
	invitex "github.com/vollybot/vollybot/agent/invite"
	invokerx "github.com/vollybot/vollybot/agent/invoker"
	pipelinex "github.com/vollybot/vollybot/agent/pipeline"
	promptx "github.com/vollybot/vollybot/agent/prompt"
	toolx "github.com/vollybot/vollybot/agent/tool"
	configx "github.com/vollybot/vollybot/pkg/config"
	logx "github.com/vollybot/vollybot/pkg/logger"
	openrouterx "github.com/vollybot/vollybot/pkg/openrouter"
	whatsappx "github.com/vollybot/vollybot/pkg/whatsapp"
	serverx "github.com/vollybot/vollybot/server"
	storex "github.com/vollybot/vollybot/store"
)

func main() {
	var (
		newGame    = flag.String("new-game", "", "schedule a game (YYYY-MM-DD or 'YYYY-MM-DD HH:MM') and broadcast invites instead of serving")
		location   = flag.String("location", "", "location for -new-game (default Beach Court 1)")
		maxPlayers = flag.Int("max-players", 0, "max players for -new-game (default 4)")
	)

	logCfg := configx.MustNew[logx.Config]("")
	logx.Init(*logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg := configx.MustNew[storex.Config]("DB")
	db := storex.Open(*dbCfg)
	defer db.Close()

	if err := storex.InitSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("schema init failed")
	}
	gateway := storex.NewPostgresGateway(db)

	waCfg := configx.MustNew[whatsappx.Config]("WHATSAPP")
	waClient := whatsappx.MustNew(*waCfg)

	orCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	prompts := promptx.LoadPromptSet()

	if *newGame != "" {
		if err := runBroadcast(ctx, gateway, waClient, *orCfg, prompts, *newGame, *location, *maxPlayers); err != nil {
			log.Fatal().Err(err).Msg("invite broadcast failed")
		}
		return
	}

	chatModel, err := orCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("chat model init failed")
	}

	infos, executor := toolx.Build(gateway)
	toolModel, err := chatModel.WithTools(infos)
	if err != nil {
		log.Fatal().Err(err).Msg("tool binding failed")
	}

	invokerCfg := configx.MustNew[invokerx.Config]("AGENT")
	inv, err := invokerx.New(invokerx.NewModelBackend(toolModel), executor, invokerCfg.MaxToolCalls, promptx.ReplyFallback)
	if err != nil {
		log.Fatal().Err(err).Msg("invoker init failed")
	}

	convoCfg := configx.MustNew[convox.Config]("AGENT")
	compiler := convox.NewCompiler(prompts.System, convoCfg.HistoryLimit)

	svc, err := pipelinex.New(gateway, compiler, inv)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline init failed")
	}

	srvCfg := configx.MustNew[serverx.Config]("SERVER")
	handler, err := serverx.NewHandler(svc, waClient, waCfg.VerifyToken, srvCfg.AppSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("handler init failed")
	}

	srv := &http.Server{
		Addr:              ":" + srvCfg.Port,
		Handler:           serverx.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", srv.Addr).Msg("webhook server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func runBroadcast(
	ctx context.Context,
	gateway storex.Gateway,
	sender invitex.Sender,
	orCfg openrouterx.Config,
	prompts promptx.PromptSet,
	dateArg, location string,
	maxPlayers int,
) error {
	startTime, err := parseGameDate(dateArg)
	if err != nil {
		return err
	}

	game, err := gateway.CreateGame(ctx, startTime, location, maxPlayers)
	if err != nil {
		return err
	}
	log.Info().Time("start_time", game.StartTime).Str("location", game.Location).
		Msg("game scheduled")

	client := openrouterx.NewClient(orCfg)
	if client == nil {
		return fmt.Errorf("openrouter client init failed")
	}
	generator, err := invitex.NewLLMGenerator(client, orCfg.Model, prompts.Invite)
	if err != nil {
		return err
	}

	broadcaster, err := invitex.NewBroadcaster(gateway, generator, sender)
	if err != nil {
		return err
	}

	_, err = broadcaster.Run(ctx, game)
	return err
}

func parseGameDate(arg string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02 15:04", arg, time.Local); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", arg, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid game date %q, want YYYY-MM-DD or 'YYYY-MM-DD HH:MM'", arg)
	}
	// Date-only games default to the evening slot.
	return t.Add(18 * time.Hour), nil
}
