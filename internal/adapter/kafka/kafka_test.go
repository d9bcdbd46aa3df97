package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/boris-companion/internal/config"
	"github.com/i474232898/boris-companion/internal/device"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs []kafkago.Message
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	if len(f.msgs) == 0 {
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) Close() error { return nil }

func TestSerializeToMessage(t *testing.T) {
	sentAt := time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)

	msg, err := serializeToMessage("boris", device.WeatherMessage{Temperature: 27, Icon: "01d"}, sentAt)
	require.NoError(t, err)

	assert.Equal(t, []byte("boris"), msg.Key)
	assert.JSONEq(t, `{"TEMPERATURE":27,"ICON":"01d"}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "message_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("weather"), msg.Headers[0].Value)
	assert.Equal(t, "sent_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(sentAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestWriter_Send(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, deviceID: "boris", logger: zerolog.Nop(), now: time.Now}

	require.NoError(t, w.Send(context.Background(), device.SettingsMessage{Bedtime: "22:00"}))
	require.Len(t, fw.msgs, 1)
	assert.Contains(t, string(fw.msgs[0].Value), `"Bedtime":"22:00"`)
	assert.Equal(t, []byte("settings"), fw.msgs[0].Headers[0].Value)
}

func TestNewWriter_SingleAttempt(t *testing.T) {
	w := NewWriter(&config.AppConfig{
		KafkaBrokers:     []string{"localhost:9092"},
		KafkaOutboxTopic: "appmessage-outbox",
		DeviceID:         "boris",
	}, zerolog.Nop())
	defer w.Close()

	kw, ok := w.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, 1, kw.MaxAttempts, "failed sends must not be retried")
	assert.Equal(t, "appmessage-outbox", kw.Topic)
}

func TestWriter_SendFailure(t *testing.T) {
	brokerDown := errors.New("broker down")
	w := &Writer{writer: &fakeWriter{err: brokerDown}, deviceID: "boris", logger: zerolog.Nop(), now: time.Now}

	err := w.Send(context.Background(), device.WeatherMessage{})
	assert.ErrorIs(t, err, brokerDown)
}

func TestMapMessageToPayload(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  map[string]any
	}{
		{"dictionary", `{"0":0}`, map[string]any{"0": float64(0)}},
		{"empty body", ``, map[string]any{}},
		{"null", `null`, map[string]any{}},
		{"not json", `ping`, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapMessageToPayload(kafkago.Message{Value: []byte(tt.value)}, zerolog.Nop())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReader_RunDeliversEveryMessage(t *testing.T) {
	fr := &fakeReader{msgs: []kafkago.Message{
		{Value: []byte(`{"0":0}`)},
		{Value: []byte(`garbage`)},
	}}
	r := &Reader{reader: fr, logger: zerolog.Nop()}

	ctx, cancel := context.WithCancel(context.Background())
	var got []map[string]any
	err := r.Run(ctx, func(_ context.Context, payload map[string]any) {
		got = append(got, payload)
		if len(got) == 2 {
			cancel()
		}
	})

	require.NoError(t, err)
	assert.Len(t, got, 2)
}
