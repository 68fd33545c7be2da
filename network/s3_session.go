package network

import (
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"os"
)

// GetS3Session returns an S3 session using credentials from the
// environment. If endpoint is not empty, the session talks to that
// endpoint using path-style addressing, which is what S3-compatible
// services and test servers expect.
func GetS3Session(awsRegion, endpoint string) (*session.Session, error) {
	if os.Getenv("AWS_ACCESS_KEY_ID") == "" || os.Getenv("AWS_SECRET_ACCESS_KEY") == "" {
		return nil, fmt.Errorf("AWS_ACCESS_KEY_ID and/or " +
			"AWS_SECRET_ACCESS_KEY not set in environment")
	}
	awsConfig := &aws.Config{
		Region:      aws.String(awsRegion),
		Credentials: credentials.NewEnvCredentials(),
	}
	if endpoint != "" {
		awsConfig.Endpoint = aws.String(endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	_session, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("Cannot create AWS session: %v", err)
	}
	return _session, nil
}
