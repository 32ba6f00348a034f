// Command echoserver wires the engineio dispatcher into a standalone
// net/http server: every inbound message is echoed back to its sender, and
// connect/disconnect events are logged.
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kosmic-labs/engineio"
	"github.com/kosmic-labs/engineio/config"
	"github.com/kosmic-labs/engineio/internal/xlog"
	"github.com/kosmic-labs/engineio/packet"
	"github.com/kosmic-labs/engineio/session"
)

var log = xlog.New("echoserver")

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")
	flag.Parse()

	cfg := config.New(
		config.WithCorsOrigins("*"),
		config.WithPingInterval(25*time.Second),
		config.WithPingTimeout(20*time.Second),
	)

	srv := engineio.New(cfg)
	srv.OnConnection(func(sess *session.Session) {
		log.Info("connected: %s from %s", sess.Id(), sess.RemoteAddress())
	})
	srv.OnMessage(func(sid string, data packet.Data) {
		if text, ok := data.Text(); ok {
			log.Debug("echoing message from %s: %s", sid, text)
			if err := srv.Send(sid, packet.Text(text)); err != nil {
				log.Error("failed to echo to %s: %v", sid, err)
			}
			return
		}
		if b, ok := data.Bytes(); ok {
			if err := srv.Send(sid, packet.Binary(b)); err != nil {
				log.Error("failed to echo binary to %s: %v", sid, err)
			}
			return
		}
		if v, ok := data.Value(); ok {
			if err := srv.Send(sid, packet.JSON(v)); err != nil {
				log.Error("failed to echo JSON to %s: %v", sid, err)
			}
		}
	})
	srv.OnDisconnect(func(sid string, reason session.CloseReason) {
		log.Info("disconnected: %s (%s)", sid, reason)
	})

	router := mux.NewRouter()
	router.PathPrefix(cfg.Path).Handler(srv)

	log.Info("listening on %s, mounted at %s", *addr, cfg.Path)
	if err := http.ListenAndServe(*addr, router); err != nil {
		log.Error("server exited: %v", err)
	}
}
