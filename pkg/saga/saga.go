package saga

import (
	"encoding/json"
	"fmt"
	"time"
)

// NewEnvelope упаковывает полезную нагрузку в конверт саги
func NewEnvelope(correlationID string, msgType MessageType, payload interface{}) (Envelope, error) {
	if correlationID == "" {
		return Envelope{}, fmt.Errorf("сообщение типа %s требует correlation_id", msgType)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("ошибка маршалинга данных сообщения %s: %w", msgType, err)
	}

	return Envelope{
		CorrelationID: correlationID,
		Type:          msgType,
		Data:          data,
		Timestamp:     time.Now().Unix(),
	}, nil
}

// ParseEnvelope разбирает сырое сообщение из очереди в конверт саги
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("ошибка десериализации конверта сообщения: %w", err)
	}
	if env.CorrelationID == "" {
		return env, fmt.Errorf("сообщение типа %s не содержит correlation_id", env.Type)
	}
	if env.Type == "" {
		return env, fmt.Errorf("сообщение с correlation_id=%s не содержит тип", env.CorrelationID)
	}
	return env, nil
}

// DecodePayload извлекает типизированную полезную нагрузку из конверта
func DecodePayload(env Envelope, out interface{}) error {
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("ошибка десериализации данных сообщения %s (correlation_id=%s): %w", env.Type, env.CorrelationID, err)
	}
	return nil
}

// RoutingKey возвращает routing key для типа сообщения
func RoutingKey(msgType MessageType) string {
	return string(msgType)
}
