//go:build integration

package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"

	"househunt/pkg/client"
)

type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
	ServerPort   string
}

func NewTestEnv() *TestEnv {
	mongoURI := getEnv("TEST_MONGO_URI", DefaultMongoURI)
	dbName := getEnv("TEST_DB_NAME", DefaultDatabaseName)
	serverPort := getEnv("TEST_SERVER_PORT", "5000")
	serverURL := getEnv("TEST_SERVER_URL", fmt.Sprintf("http://localhost:%s", serverPort))

	return &TestEnv{
		MongoURI:     mongoURI,
		DatabaseName: dbName,
		ServerURL:    serverURL,
		ServerPort:   serverPort,
	}
}

// Setup empties the service's collections and waits for the server under
// test to report healthy. The suite sends more requests than the default rate
// limit allows, so start the server with RATE_LIMIT_REQUESTS raised.
func (e *TestEnv) Setup(t *testing.T) (*MongoHelper, *client.HouseHuntClient) {
	t.Helper()

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.CleanDatabase(t)

	api := client.NewHouseHuntClient(e.ServerURL)
	ctx, cancel := context.WithTimeout(context.Background(), DefaultHealthCheckTimeout)
	defer cancel()
	if err := api.HTTP().WaitForHealthy(ctx, DefaultHealthCheckTimeout); err != nil {
		t.Fatalf("server at %s not healthy: %v", e.ServerURL, err)
	}

	return mongo, api
}

func (e *TestEnv) Cleanup(t *testing.T, mongo *MongoHelper) {
	t.Helper()

	if mongo != nil {
		mongo.CleanDatabase(t)
		mongo.Close(t)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

const (
	DefaultHealthCheckTimeout = 3 * ConnectionTimeout
)
