package models

// CommandRequest - команда устройству. Function - имя функции ("home",
// "acquire_image") или ее числовой код.
// Online отклоняет команду, если устройство еще не подключено, вместо
// постановки в очередь.
type CommandRequest struct {
	Function string `json:"function" binding:"required"`
	Args     []any  `json:"args"`
	Online   bool   `json:"online"`
}

// MQTTCommand - команда, пришедшая из топика команд MQTT.
type MQTTCommand struct {
	Device   string `msgpack:"device"`
	Function string `msgpack:"function"`
	Args     []any  `msgpack:"args"`
}
