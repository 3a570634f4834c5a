package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// InitMessaging returns an FCM client, or nil when no Firebase credentials
// are configured. Push notifications are optional for the panel.
func InitMessaging(ctx context.Context) (*messaging.Client, error) {
	var opt option.ClientOption
	switch {
	case os.Getenv("FIREBASE_CREDENTIALS_BASE64") != "":
		log.Printf("Using Firebase credentials from base64 environment variable")
		decoded, err := base64.StdEncoding.DecodeString(os.Getenv("FIREBASE_CREDENTIALS_BASE64"))
		if err != nil {
			return nil, fmt.Errorf("decode firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
	case os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
		credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		log.Printf("Using Firebase credentials file: %s", credFile)
		opt = option.WithCredentialsFile(credFile)
	default:
		log.Printf("Warning: Firebase credentials not set, push notifications disabled")
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: os.Getenv("FIREBASE_PROJECT_ID")}, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize messaging client: %w", err)
	}
	return client, nil
}
