// README: Firebase Admin SDK initialisation: ID-token verifier and FCM messaging client.
package infra

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/option"
)

// FirebaseToken holds the verified token data used by downstream middleware.
type FirebaseToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw Firebase ID token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

// Firebase bundles the admin-SDK clients the service uses.
type Firebase struct {
	auth      *auth.Client
	Messaging *messaging.Client
}

// NewFirebase creates the Firebase app and derives the auth and messaging
// clients. If credentialsFile is non-empty it is used as the service-account
// JSON path; otherwise application-default credentials are used. projectID is
// required so the SDK can construct the correct token-verification URL.
func NewFirebase(ctx context.Context, projectID, credentialsFile string) (*Firebase, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "firebase.NewApp")
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firebase app.Auth")
	}
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firebase app.Messaging")
	}
	return &Firebase{auth: authClient, Messaging: msgClient}, nil
}

func (f *Firebase) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := f.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
}
