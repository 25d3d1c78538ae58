package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestAttempt(t *testing.T) {
	cases := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{"missing header", nil, 1},
		{"int32 from broker", amqp.Table{attemptHeader: int32(3)}, 3},
		{"int64", amqp.Table{attemptHeader: int64(2)}, 2},
		{"int", amqp.Table{attemptHeader: 4}, 4},
		{"garbage", amqp.Table{attemptHeader: "two"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := attempt(amqp.Delivery{Headers: tc.headers}); got != tc.want {
				t.Fatalf("attempt() = %d, want %d", got, tc.want)
			}
		})
	}
}
