// Package delivery доставляет события из очереди клиентам: таблица сессий,
// обработчики диспетчера, рендеринг в JSON, websocket-соединения и зеркало в NATS.
package delivery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/tileworld/internal/events"
)

// DefaultCompressThreshold: map-data длиннее этого порога сжимается zstd
const DefaultCompressThreshold = 8 * 1024

// Envelope: формат кадра, который видит клиент
type Envelope struct {
	ID        string          `json:"id"`
	Seq       uint64          `json:"seq"`
	Type      events.Type     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Frame: готовые к отправке байты. Compressed означает zstd поверх JSON.
type Frame struct {
	Data       []byte
	Compressed bool
}

// Renderer превращает события в кадры. Потокобезопасен: EncodeAll и
// DecodeAll у zstd допускают конкурентные вызовы.
type Renderer struct {
	threshold int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewRenderer создаёт рендерер. threshold <= 0 отключает сжатие.
func NewRenderer(threshold int) (*Renderer, error) {
	r := &Renderer{threshold: threshold}
	if threshold <= 0 {
		return r, nil
	}

	var err error
	r.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	r.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return r, nil
}

// Encode сериализует событие в JSON-конверт без сжатия
func (r *Renderer) Encode(ev events.GameEvent) ([]byte, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload %s: %w", ev.Type, err)
	}
	return json.Marshal(Envelope{
		ID:        ev.ID.String(),
		Seq:       ev.Seq,
		Type:      ev.Type,
		Payload:   payload,
		CreatedAt: ev.CreatedAt,
	})
}

// Render строит кадр. Сжимается только map-data выше порога.
func (r *Renderer) Render(ev events.GameEvent) (Frame, error) {
	data, err := r.Encode(ev)
	if err != nil {
		return Frame{}, err
	}
	if r.encoder != nil && ev.Type == events.TypeMapData && len(data) > r.threshold {
		return Frame{Data: r.encoder.EncodeAll(data, nil), Compressed: true}, nil
	}
	return Frame{Data: data}, nil
}

// Decode разбирает кадр обратно в конверт
func (r *Renderer) Decode(f Frame) (Envelope, error) {
	data := f.Data
	if f.Compressed {
		if r.decoder == nil {
			return Envelope{}, fmt.Errorf("сжатый кадр, но сжатие отключено")
		}
		var err error
		data, err = r.decoder.DecodeAll(f.Data, nil)
		if err != nil {
			return Envelope{}, fmt.Errorf("decompression failed: %w", err)
		}
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return env, nil
}

// Close освобождает ресурсы zstd
func (r *Renderer) Close() {
	if r.encoder != nil {
		r.encoder.Close()
	}
	if r.decoder != nil {
		r.decoder.Close()
	}
}
