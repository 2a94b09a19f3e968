package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pingcap-incubator/tinystm/kv/config"
	"github.com/pingcap-incubator/tinystm/kv/executor"
	"github.com/pingcap-incubator/tinystm/kv/server"
	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/kv/transaction/commands"
	"github.com/pingcap-incubator/tinystm/kv/writethrough"
	"github.com/pingcap-incubator/tinystm/log"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "config file path")
	addr       = flag.String("addr", "", "listen address")
	statusAddr = flag.String("status-addr", "", "status server listen address")
	logLevel   = flag.String("loglevel", "", "log level: debug, info, warn, error, fatal")
)

var (
	gitHash = "None"
)

func main() {
	flag.Parse()
	conf := loadConfig()
	if *addr != "" {
		conf.Addr = *addr
	}
	if *statusAddr != "" {
		conf.StatusAddr = *statusAddr
	}
	if *logLevel != "" {
		conf.LogLevel = *logLevel
	}
	if err := log.InitLogger(conf.LogLevel, conf.LogFile); err != nil {
		log.Fatal(err)
	}
	defer log.Sync()
	if err := conf.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	log.L().Info("starting tinystm", zap.String("git-hash", gitHash), zap.Any("config", conf))

	store, err := stm.NewStore(conf.Engine, conf.ShardCount)
	if err != nil {
		log.Fatal(err)
	}
	opts := stm.Options{
		Backoff:          conf.Backoff.Duration,
		SerializeCommits: conf.SerializeCommits,
	}
	var publisher *writethrough.Publisher
	if conf.WriteThrough.Enabled {
		publisher = setupWriteThrough(conf)
		opts.Listener = publisher
	}
	env := &commands.Env{
		Driver:   stm.NewDriver(store, opts),
		Executor: executor.NewBuiltinRegistry(),
		Alloc: commands.AllocRange{
			Start:       conf.Alloc.Start,
			End:         conf.Alloc.End,
			Concurrency: conf.Alloc.Concurrency,
		},
	}
	if _, err := commands.Alloc(context.Background(), env.Driver, env.Alloc); err != nil {
		log.Fatalf("initial allocation failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:    conf.Addr,
		Handler: server.NewServer(env, conf.MaxQPS).Handler(),
	}
	stopped := handleSignal(httpServer)
	if conf.StatusAddr != "" {
		go func() {
			log.Infof("status server listening on %v", conf.StatusAddr)
			if err := http.ListenAndServe(conf.StatusAddr, server.NewStatusHandler()); err != nil {
				log.Errorf("status server: %v", err)
			}
		}()
	}

	log.Infof("listening on %v", conf.Addr)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
	<-stopped
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Errorf("close write-through: %v", err)
		}
		log.Infof("write-through written=%d dropped=%d", publisher.Written(), publisher.Dropped())
	}
	log.Info("Server stopped.")
}

func loadConfig() *config.Config {
	conf := config.NewDefaultConfig()
	if *configPath != "" {
		if err := conf.LoadFile(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	return conf
}

func setupWriteThrough(conf *config.Config) *writethrough.Publisher {
	wt := conf.WriteThrough
	sink := writethrough.NewRedisSink(
		writethrough.RedisOptions(wt.RedisAddr, wt.RedisPassword, wt.RedisDB, wt.Timeout.Duration), wt.HashKey)
	ctx, cancel := context.WithTimeout(context.Background(), wt.Timeout.Duration)
	defer cancel()
	if err := sink.Ping(ctx); err != nil {
		log.Warnf("redis %s is not reachable yet: %v", wt.RedisAddr, err)
	}
	return writethrough.NewPublisher(sink, wt.QueueSize, wt.Timeout.Duration)
}

// handleSignal shuts httpServer down on the first signal. The returned channel is closed once in-flight requests
// are done.
func handleSignal(httpServer *http.Server) <-chan struct{} {
	stopped := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		defer close(stopped)
		sig := <-sigCh
		log.Infof("Got signal [%s] to exit.", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()
	return stopped
}
