// Standalone dev companion standing in for the booking workflow: seeds an
// authorization cache entry for a call room and prints signed test tokens
// for its participants. Never deployed with the relay.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
)

type cacheEntry struct {
	AppointmentID   string   `json:"appointmentId"`
	AuthorizedUsers []string `json:"authorizedUsers"`
	CreatedAt       int64    `json:"createdAt"`
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func main() {
	roomID := flag.String("room", "test-room", "call room id to seed")
	appointmentID := flag.String("appointment", "test-appointment", "appointment id")
	users := flag.String("users", "client-1,lawyer-1", "comma-separated authorized user ids")
	ttl := flag.Duration("ttl", 24*time.Hour, "cache entry TTL")
	flag.Parse()

	redisAddr := getEnv("SIGNALING_REDIS_ADDRESS", "localhost:6379")
	secret := getEnv("SIGNALING_JWT_SECRET", "dev-only-secret")

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis at %s: %v", redisAddr, err)
	}

	userIDs := strings.Split(*users, ",")
	entry := cacheEntry{
		AppointmentID:   *appointmentID,
		AuthorizedUsers: userIDs,
		CreatedAt:       time.Now().Unix(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Fatalf("failed to marshal cache entry: %v", err)
	}

	key := fmt.Sprintf("call:%s", *roomID)
	if err := rdb.Set(ctx, key, data, *ttl).Err(); err != nil {
		log.Fatalf("failed to seed %s: %v", key, err)
	}
	log.Printf("seeded %s for users %v", key, userIDs)

	for _, userID := range userIDs {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"userId":        userID,
			"appointmentId": *appointmentID,
			"callRoomId":    *roomID,
			"exp":           time.Now().Add(*ttl).Unix(),
			"iat":           time.Now().Unix(),
		})
		signed, err := token.SignedString([]byte(secret))
		if err != nil {
			log.Fatalf("failed to sign token for %s: %v", userID, err)
		}
		fmt.Printf("%s: %s\n", userID, signed)
	}
}
