// Command mudra publishes per-camera gesture and face status to MQTT.
package main

func main() {
	Execute()
}
