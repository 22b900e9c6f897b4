/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package server

import (
	"fmt"
	"github.com/traas-stack/holoinsight-ingest/pkg/logger"
	"github.com/traas-stack/holoinsight-ingest/pkg/util"
	"go.uber.org/zap"
	"net"
	"net/http"
	_ "net/http/pprof"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"
)

type (
	HttpServerComponent struct {
		addr     string
		server   *http.Server
		listener net.Listener
		mutex    sync.Mutex
		helpOnce sync.Once
	}
)

func NewHttpServerComponent(addr string) *HttpServerComponent {
	return &HttpServerComponent{addr: addr}
}

// Start binds the address and serves in background. Bind errors are returned.
func (h *HttpServerComponent) Start() error {
	h.helpOnce.Do(func() {
		RegisterApiHandleFunc("/", printHelp)
	})

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	h.listener = ln
	h.server = &http.Server{Handler: apiHandleFuncMux}
	server := h.server
	h.mutex.Unlock()

	logger.Infoz("[http] start http server", zap.String("addr", ln.Addr().String()))
	util.GoWithRecover(func() {
		if err := server.Serve(ln); err != nil {
			if err == http.ErrServerClosed {
				logger.Infoz("[http] server closed", zap.String("addr", h.addr))
			} else {
				logger.Errorz("[http] serve error", zap.String("addr", h.addr), zap.Error(err))
			}
		}
	}, func(p interface{}) {
		logger.Errorz("[http] serve panic", zap.Any("panic", p))
	})
	return nil
}

// Addr returns the bound address, useful when started on port 0.
func (h *HttpServerComponent) Addr() string {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

func (h *HttpServerComponent) Stop() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	server := h.server
	if server != nil {
		h.server = nil
		server.Close()
	}
}

func buildHelps(addr string) string {
	apiHandleFuncStoreMu.RLock()
	m := make(map[string]ApiServerFunc, len(apiHandleFuncStore))
	for k, v := range apiHandleFuncStore {
		m[k] = v
	}
	apiHandleFuncStoreMu.RUnlock()

	helps := "Some help msg for holoinsight-ingest:\n"
	const blankNum = 25

	var urls []string
	for k := range m {
		urls = append(urls, k)
	}
	sort.Strings(urls)

	for _, k := range urls {
		v := m[k]
		name := strings.Split(runtime.FuncForPC(reflect.ValueOf(v.F).Pointer()).Name(), ".")
		hName := name[len(name)-1] + ":"
		usage := fmt.Sprintf("curl %s%s", addr, k)
		for _, vv := range v.MoreUsages {
			if vv != "" {
				usage += "\n" + strings.Repeat(" ", blankNum) + vv
			}
		}

		helps += fmt.Sprintf("%-25s%s\n", hName, usage)
	}
	return helps
}

func printHelp(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Write([]byte(buildHelps(r.Host)))
}
