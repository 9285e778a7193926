//go:build integration

package notifier_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"usermgmt/internal/users/adapters/notifier"
	"usermgmt/pkg/testutil/containers"
)

type KafkaNotifierSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaNotifierSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaNotifierSuite))
}

func (s *KafkaNotifierSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaNotifierSuite) TestPublishesWelcomeMessage() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "user.welcome." + uuid.NewString()
	n, err := notifier.NewKafka([]string{s.redpanda.Broker}, topic)
	s.Require().NoError(err)
	defer n.Close()

	s.Require().NoError(n.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(n.EnsureTopic(ctx, 1, 1), "topic creation is idempotent")
	s.Require().NoError(n.Send(ctx, "jane@example.com", "Welcome to Our System", "<h1>Welcome Jane Doe!</h1>"))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []*kgo.Record
	for len(got) == 0 {
		fetches := consumer.PollFetches(ctx)
		s.Require().Empty(fetches.Errors())
		fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	}

	s.Equal("jane@example.com", string(got[0].Key))
	var msg notifier.Message
	s.Require().NoError(json.Unmarshal(got[0].Value, &msg))
	s.Equal("jane@example.com", msg.To)
	s.Equal("Welcome to Our System", msg.Subject)
	s.Equal("<h1>Welcome Jane Doe!</h1>", msg.HTMLBody)
	s.False(msg.QueuedAt.IsZero())
}
