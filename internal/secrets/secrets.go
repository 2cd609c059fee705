package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

var ErrSecretNotFound = errors.New("secret not found")

// TokenSource yields the admin token used to call the organization directory.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SecretsManagerAPI is the subset of the Secrets Manager client we use.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// EnvSource reads the token from an environment variable.
type EnvSource struct {
	Var string
}

func (s EnvSource) Token(_ context.Context) (string, error) {
	value := strings.TrimSpace(os.Getenv(s.Var))
	if value == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrSecretNotFound, s.Var)
	}
	return value, nil
}

// SecretsManagerSource reads the token from AWS Secrets Manager. When Key is set the
// secret string is treated as a JSON object and Key selects the field.
type SecretsManagerSource struct {
	Client   SecretsManagerAPI
	SecretID string
	Key      string
}

func (s SecretsManagerSource) Token(ctx context.Context) (string, error) {
	out, err := s.Client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.SecretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, s.SecretID)
		}
		return "", fmt.Errorf("failed to read secret %s: %w", s.SecretID, err)
	}

	value := aws.ToString(out.SecretString)
	if s.Key == "" {
		return strings.TrimSpace(value), nil
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		return "", fmt.Errorf("secret %s is not a JSON object: %w", s.SecretID, err)
	}
	token, ok := fields[s.Key]
	if !ok || token == "" {
		return "", fmt.Errorf("%w: key %s in %s", ErrSecretNotFound, s.Key, s.SecretID)
	}
	return token, nil
}

// KubernetesSource reads the token from a key of a Kubernetes secret.
type KubernetesSource struct {
	Client    kubernetes.Interface
	Namespace string
	Name      string
	Key       string
}

func (s KubernetesSource) Token(ctx context.Context) (string, error) {
	secret, err := s.Client.CoreV1().Secrets(s.Namespace).Get(ctx, s.Name, metav1.GetOptions{})
	if err != nil {
		if k8serrors.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s/%s", ErrSecretNotFound, s.Namespace, s.Name)
		}
		return "", fmt.Errorf("failed to read secret %s/%s: %w", s.Namespace, s.Name, err)
	}

	value, ok := secret.Data[s.Key]
	if !ok || len(value) == 0 {
		return "", fmt.Errorf("%w: key %s in %s/%s", ErrSecretNotFound, s.Key, s.Namespace, s.Name)
	}
	return strings.TrimSpace(string(value)), nil
}
