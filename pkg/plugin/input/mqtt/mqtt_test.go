/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package mqtt

import (
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traas-stack/holoinsight-ingest/pkg/appconfig"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
	"testing"
)

func TestNew(t *testing.T) {
	_, err := New(appconfig.MQTTConfig{}, "s1")
	assert.Error(t, err)
	_, err = New(appconfig.MQTTConfig{Broker: "tcp://localhost:1883"}, "s1")
	assert.Error(t, err)
	_, err = New(appconfig.MQTTConfig{Broker: "tcp://localhost:1883", Topics: []string{"a"}, QoS: 3}, "s1")
	assert.Error(t, err)

	r, err := New(appconfig.MQTTConfig{Broker: "tcp://localhost:1883", Topics: []string{"plant/#"}}, "s1")
	require.NoError(t, err)
	assert.Equal(t, "mqtt:tcp://localhost:1883", r.Name())
	assert.NoError(t, r.Close())
}

func TestOnMessage(t *testing.T) {
	r, err := New(appconfig.MQTTConfig{Broker: "tcp://localhost:1883", Topics: []string{"plant/#"}}, "s1")
	require.NoError(t, err)

	var got []*model.RawReading
	emit := func(reading *model.RawReading) {
		got = append(got, reading)
	}

	r.onMessage("plant/a", []byte(`{"tagId":"a","value":1.5}`), emit)
	r.onMessage("plant/b", []byte(`[{"tagId":"b","value":2},{"tagId":"c"}]`), emit)
	r.onMessage("plant/c", []byte(`garbage`), emit)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].TagID)
	assert.Equal(t, 1.5, got[0].Value)
	assert.Equal(t, "s1", got[0].Site)
	assert.Equal(t, "b", got[1].TagID)
}

type reconnectingClient struct {
	paho.Client
	disconnects []uint
}

func (c *reconnectingClient) IsConnected() bool {
	return false
}

func (c *reconnectingClient) Disconnect(quiesce uint) {
	c.disconnects = append(c.disconnects, quiesce)
}

func TestClose_DisconnectsWhileReconnecting(t *testing.T) {
	r, err := New(appconfig.MQTTConfig{Broker: "tcp://localhost:1883", Topics: []string{"plant/#"}}, "s1")
	require.NoError(t, err)

	client := &reconnectingClient{}
	r.client = client

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
	assert.Equal(t, []uint{disconnectQuiesce}, client.disconnects)
}
