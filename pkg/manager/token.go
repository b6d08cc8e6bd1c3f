package manager

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// NodeCredential is the worker-registry access credential issued to a Node
// at register_node time, matching types.RegisterNodeResult's shape.
type NodeCredential struct {
	NodeURL   string
	AccessKey string
	SecretKey string
	IssuedAt  time.Time
}

// CredentialManager issues and tracks worker-registry access credentials
// per node, generalized from the teacher's join-token generator (random
// hex secret, tracked by a map guarded by a RWMutex) from certificate join
// tokens to registry access keys.
type CredentialManager struct {
	mu          sync.RWMutex
	credentials map[string]*NodeCredential
}

// NewCredentialManager creates an empty CredentialManager.
func NewCredentialManager() *CredentialManager {
	return &CredentialManager{credentials: make(map[string]*NodeCredential)}
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("manager: generate random credential: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issue generates and records a fresh access/secret key pair for nodeURL.
// Re-registering the same node URL issues a new pair; the prior one is
// discarded, matching the Worker Registry's own "new save replaces the
// active credential" posture rather than an expiring-token model (nodes
// are long-lived cluster members, not short-lived join requests).
func (cm *CredentialManager) Issue(nodeURL string) (*NodeCredential, error) {
	accessKey, err := randomHex(16)
	if err != nil {
		return nil, err
	}
	secretKey, err := randomHex(32)
	if err != nil {
		return nil, err
	}

	cred := &NodeCredential{
		NodeURL:   nodeURL,
		AccessKey: accessKey,
		SecretKey: secretKey,
		IssuedAt:  time.Now(),
	}

	cm.mu.Lock()
	cm.credentials[nodeURL] = cred
	cm.mu.Unlock()
	return cred, nil
}

// Lookup returns the credential issued to nodeURL, if any.
func (cm *CredentialManager) Lookup(nodeURL string) (*NodeCredential, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	cred, ok := cm.credentials[nodeURL]
	return cred, ok
}
