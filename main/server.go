package main

import (
	"MvccDB"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tidwall/redcon"
	"gopkg.in/yaml.v2"
)

const defaultAddr = "127.0.0.1:6380"

// ServerConfig server settings, the db section follows MvccDB.Options
type ServerConfig struct {
	Addr string         `yaml:"addr"`
	DB   MvccDB.Options `yaml:"db"`
}

func loadConfig(path string) (*ServerConfig, error) {
	cfg := &ServerConfig{Addr: defaultAddr, DB: MvccDB.DefaultOptions}
	if path == "" {
		return cfg, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

type MvccServer struct {
	db     *MvccDB.DB
	addr   string
	server *redcon.Server
	mu     sync.Mutex
	// open client connections
	clients map[redcon.Conn]*MvccClient
}

func NewMvccServer(cfg *ServerConfig) (*MvccServer, error) {
	db, err := MvccDB.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	svr := &MvccServer{
		db:      db,
		addr:    cfg.Addr,
		clients: make(map[redcon.Conn]*MvccClient),
	}
	svr.server = redcon.NewServer(cfg.Addr, execClientCommand, svr.accept, svr.closed)
	return svr, nil
}

func (svr *MvccServer) listen() error {
	log.Println("mvccdb server running, ready to accept connections on", svr.addr)
	return svr.server.ListenAndServe()
}

// accept every connection gets its own client and at most one open txn
func (svr *MvccServer) accept(conn redcon.Conn) bool {
	cli := newMvccClient(svr.db)
	svr.mu.Lock()
	svr.clients[conn] = cli
	svr.mu.Unlock()
	conn.SetContext(cli)
	return true
}

// closed aborts the txn a dropped connection left open
func (svr *MvccServer) closed(conn redcon.Conn, err error) {
	svr.mu.Lock()
	cli := svr.clients[conn]
	delete(svr.clients, conn)
	svr.mu.Unlock()
	if cli != nil {
		cli.release()
	}
	if err != nil {
		log.Printf("connection %s closed: %v", conn.RemoteAddr(), err)
	}
}

func (svr *MvccServer) Close() error {
	_ = svr.server.Close()
	svr.mu.Lock()
	for conn, cli := range svr.clients {
		cli.release()
		delete(svr.clients, conn)
	}
	svr.mu.Unlock()
	return svr.db.Close()
}

func main() {
	configPath := flag.String("config", "", "path of the yaml config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	svr, err := NewMvccServer(cfg)
	if err != nil {
		log.Fatal(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		if err := svr.Close(); err != nil {
			log.Println("close db:", err)
		}
	}()

	if err := svr.listen(); err != nil {
		log.Println(err)
	}
}
