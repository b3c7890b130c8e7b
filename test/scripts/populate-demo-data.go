package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
)

func main() {
	server := flag.String("server", "localhost:4222", "Broker URL")
	flag.Parse()

	nc, err := nats.Connect(*server)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatalf("Failed to create JetStream context: %v", err)
	}

	log.Println("Connected successfully!")

	queues := []struct {
		name     string
		subject  string
		msgCount int
	}{
		{"order-processing", "orders.process", 75},
		{"order-processing_dmq", "orders.dmq", 12},
		{"payment-transactions", "payments.tx", 200},
		{"payment-transactions_dmq", "payments.dmq", 0},
		{"notification-service", "notifications.send", 50},
		{"audit-logs", "audit.logs", 300},
		{"email-queue", "email.outbound", 0},
	}

	for _, q := range queues {
		log.Printf("Creating queue: %s", q.name)
		_, err := js.AddStream(&nats.StreamConfig{
			Name:      q.name,
			Subjects:  []string{q.subject},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
			Replicas:  1,
		})
		if err != nil {
			log.Printf("Queue %s might already exist: %v", q.name, err)
		}

		// Give roughly half the queues a durable consumer so the
		// listener classification has something to chew on.
		if rand.Intn(2) == 0 {
			consumerName := fmt.Sprintf("%s-consumer", q.name)
			_, err = js.AddConsumer(q.name, &nats.ConsumerConfig{
				Durable:       consumerName,
				AckPolicy:     nats.AckExplicitPolicy,
				DeliverPolicy: nats.DeliverAllPolicy,
			})
			if err != nil {
				log.Printf("Consumer %s might already exist: %v", consumerName, err)
			}
		}

		log.Printf("Publishing %d messages to %s", q.msgCount, q.name)
		publishMessages(js, q.subject, q.msgCount)
	}

	log.Println("Demo data population completed successfully!")
	log.Println("Try: jmsqctl list --class with-messages")
}

func publishMessages(js nats.JetStreamContext, subject string, count int) {
	types := []string{"order", "payment", "notice", "audit"}
	regions := []string{"eu", "us", "apac"}

	for i := 0; i < count; i++ {
		msg := nats.NewMsg(subject)
		msg.Header.Set("type", types[rand.Intn(len(types))])
		msg.Header.Set("region", regions[rand.Intn(len(regions))])
		msg.Header.Set("priority", strconv.Itoa(rand.Intn(10)))
		msg.Data = []byte(fmt.Sprintf(`{"seq":%d,"note":"demo payload"}`, i+1))

		if _, err := js.PublishMsg(msg); err != nil {
			log.Printf("Failed to publish message: %v", err)
		}
	}
}
