// Package mqtt provides the MQTT client used by the scene rotator's control
// bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS validation and a payload size limit
//   - Subscriptions that are restored after every reconnect
//   - A retained presence topic with a Last Will for offline detection
//
// # Topics
//
// Every topic lives under a configurable prefix (default "scenerotator"):
//
//	{prefix}/presence          online/offline (retained, LWT)
//	{prefix}/status            scheduler status (retained)
//	{prefix}/event/{channel}   rotation events
//	{prefix}/command/{name}    inbound commands
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topics.CommandName(topic), payload)
//	    })
package mqtt
