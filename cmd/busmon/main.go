package main

import (
	"flag"
	"log"
	"os"
	"reflect"

	"github.com/robotalks/mcu.go/pkg/bridge/mqtt"
	"github.com/robotalks/mcu.go/pkg/telemetry"
)

var (
	mqttURL = "mqtt://localhost:1883/mcu/"
	topic   = "#"
)

func init() {
	if val := os.Getenv("MCU_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&topic, "topic", topic, "Topic filter relative to the URL prefix.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}

	q.Sub(topic, mqtt.Handler(func(topic string, payload []byte) {
		if mqtt.MatchTopic(topic, "+/serial/+") {
			log.Printf("%s: %q", topic, payload)
			return
		}
		msg, err := telemetry.Decode(payload)
		if err != nil {
			log.Printf("%s: decode error: %v", topic, err)
			return
		}
		log.Printf("%s: [%s] %s", topic,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
			msg.(telemetry.SerializableMessage).Serializable().String())
	}))
	<-(chan struct{})(nil)
}
