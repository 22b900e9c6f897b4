/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package server

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"testing"
)

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestHttpServer(t *testing.T) {
	RegisterApiHandleFunc("/test", func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte("test success!"))
	}, "curl -XPOST 127.0.0.1:9118/test")
	// second registration is ignored
	HandleFunc("/test", func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte("replaced"))
	})

	h := NewHttpServerComponent("127.0.0.1:0")
	require.NoError(t, h.Start())
	defer h.Stop()

	base := "http://" + h.Addr()
	code, body := get(t, base+"/test")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "test success!", body)

	code, body = get(t, base+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "/test")
	assert.Contains(t, body, "curl -XPOST")

	code, _ = get(t, base+"/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHttpServer_BindError(t *testing.T) {
	h := NewHttpServerComponent("127.0.0.1:0")
	require.NoError(t, h.Start())
	defer h.Stop()

	other := NewHttpServerComponent(h.Addr())
	assert.Error(t, other.Start())
}
