package utils

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// SetupCloseHandler 收到 SIGINT/SIGTERM 时执行 callback 后退出；
// callback 执行期间再次收到信号则立即以状态 1 退出
func SetupCloseHandler(callback func(sig os.Signal)) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-c
		log.Info().Str("signal", sig.String()).Msg("[Signal] shutting down")

		go func() {
			<-c
			log.Warn().Msg("[Signal] forced exit")
			os.Exit(1)
		}()

		callback(sig)
		os.Exit(0)
	}()
}

// SetupReloadHandler 每次收到 SIGHUP 时执行 callback，直到 stop 被关闭
func SetupReloadHandler(callback func(), stop <-chan struct{}) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP)
	go func() {
		defer signal.Stop(c)
		for {
			select {
			case <-c:
				log.Info().Msg("[Signal] reloading config")
				callback()
			case <-stop:
				return
			}
		}
	}()
}
