package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"fixengine/adminapi"
	"fixengine/appchannel"
	"fixengine/config"
	"fixengine/fix"
	"fixengine/reactor"
	"fixengine/session"
)

// Version info - increment based on change magnitude:
// Major (x.0.0): Breaking changes, major rewrites
// Minor (0.y.0): New features, significant enhancements
// Patch (0.0.z): Bug fixes, minor improvements
var Version = "1.0.0"

// loggingHandler is the default application handler wired into every
// configured session until a real trading application is attached; it
// only logs what it receives, per appchannel.BaseHandler's no-op shape.
type loggingHandler struct {
	appchannel.BaseHandler
	sessionID string
}

func (h *loggingHandler) Handle(ctx *appchannel.Context, msg *fix.Message) (*fix.Message, error) {
	log.Infof("session %s: delivered application message MsgType=%s seq=%d", h.sessionID, msg.MsgType, msg.MsgSeqNum())
	return nil, nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logs.Path != "" {
		os.MkdirAll(cfg.Logs.Path, 0755)
		logFile, err := os.OpenFile(cfg.Logs.Path+"/fixengine.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
		}
	}
	if lvl, err := log.ParseLevel(cfg.Logs.Level); err == nil {
		log.SetLevel(lvl)
	}

	log.Infof("Starting FIX session engine v%s", Version)
	log.Infof("  Sessions configured: %d", len(cfg.Sessions))
	log.Infof("  Admin listen: %s", cfg.Admin.Listen)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutting down...")
		cancel()
	}()

	r := reactor.New()
	stats := adminapi.NewStatsRecorder(cfg.Logs.Path + "/session-stats.json")
	sessions := make(map[string]*session.Session, len(cfg.Sessions))

	for _, entry := range cfg.Sessions {
		sc, err := entry.ToSessionConfig()
		if err != nil {
			log.Fatalf("config: %v", err)
		}

		dict := fix.StandardDictionary(sc.Identity.BeginString)
		id := entry.ID()
		handler := appchannel.NewChannel(&loggingHandler{sessionID: id}, nil, nil)

		sess, err := session.New(sc, r, dict, handler)
		if err != nil {
			log.Fatalf("session %s: %v", id, err)
		}

		if err := sess.Start(); err != nil {
			log.Fatalf("session %s: start: %v", id, err)
		}

		sessions[id] = sess
		stats.Register(id, sess)
		log.Infof("session %s: configured (role=%s address=%s)", id, sc.Role, sc.Address)
	}

	admin := adminapi.New(cfg.Admin.Listen, sessions, stats)

	done := make(chan struct{})
	go stats.Run(done, 5*time.Second)

	go func() {
		<-ctx.Done()
		for _, sess := range sessions {
			sess.Stop()
		}
		r.Stop()
		close(done)
	}()

	// A single session's transport trouble must never take the shared
	// reactor (and every other session on it) down with it: the session
	// itself already reacted via OnDisconnect/OnError, so the loop just
	// logs and keeps going.
	keepRunning := func(err error) bool {
		log.WithError(err).Warn("reactor: callback error, continuing")
		return true
	}
	go r.Run(keepRunning)

	if err := admin.Run(ctx); err != nil {
		log.Fatalf("adminapi: %v", err)
	}
}
