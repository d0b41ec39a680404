package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
)

type liveConfig struct {
	Live struct {
		ServerAddr string `mapstructure:"server_addr"`
		Path       string `mapstructure:"path"`
	} `mapstructure:"live"`
}

// watch_live tails the live event feed of a running recorder: connect
// to the hub, optionally filtered to one session, and print every
// event as it arrives.
func main() {
	configPath := flag.String("config", "", "yaml config to read the hub address from")
	addr := flag.String("addr", "", "hub address, overrides the config (host:port)")
	path := flag.String("path", "", "hub path, overrides the config")
	sessionID := flag.String("session", "", "only show events for this session")
	flag.Parse()

	hubAddr := *addr
	hubPath := *path
	if *configPath != "" {
		cfg, err := loadLiveConfig(*configPath)
		if err != nil {
			fmt.Println("config error:", err)
			os.Exit(1)
		}
		if hubAddr == "" {
			hubAddr = cfg.Live.ServerAddr
		}
		if hubPath == "" {
			hubPath = cfg.Live.Path
		}
	}
	if hubAddr == "" {
		hubAddr = "localhost:8090"
	}
	if hubPath == "" {
		hubPath = "/live"
	}

	url := "ws://" + hubAddr + hubPath
	if *sessionID != "" {
		url += "?session_id=" + *sessionID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Println("dial error:", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Println("connected:", url)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fmt.Println(string(msg))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-done:
	}
}

func loadLiveConfig(path string) (liveConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return liveConfig{}, err
	}
	var cfg liveConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return liveConfig{}, err
	}
	return cfg, nil
}
