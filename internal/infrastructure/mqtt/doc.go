// Package mqtt connects the scheduler to an MQTT broker using
// github.com/eclipse/paho.mqtt.golang.
//
// The client handles reconnection with backoff, replays subscriptions
// after a reconnect, recovers panics in message handlers and keeps a
// retained online/offline status on Topics.Status (with a last-will for
// crashes).
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1, handler)
package mqtt
