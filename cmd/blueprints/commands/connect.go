package commands

import (
	"fmt"
	"strings"

	"github.com/dyluth/blueprints/internal/config"
	"github.com/dyluth/blueprints/internal/transport"
	"github.com/dyluth/blueprints/internal/transport/redisbroker"
	"github.com/dyluth/blueprints/internal/transport/wsbroker"
	"github.com/dyluth/blueprints/pkg/blueprint"
)

// newDialer picks the transport backend named by the configuration.
func newDialer(tc config.TransportConfig) (transport.Dialer, string, error) {
	switch tc.Kind {
	case config.TransportWebSocket:
		return wsbroker.NewDialer(tc.Endpoint), tc.Endpoint, nil
	case config.TransportRedis:
		d, err := redisbroker.NewDialerFromURL(tc.RedisURL, 0)
		if err != nil {
			return nil, "", err
		}
		return d, tc.RedisURL, nil
	default:
		return nil, "", fmt.Errorf("unknown transport kind: %s", tc.Kind)
	}
}

// newManager creates the process-wide link manager. It does not connect.
func newManager(tc config.TransportConfig) (*transport.Manager, string, error) {
	d, endpoint, err := newDialer(tc)
	if err != nil {
		return nil, "", err
	}
	return transport.NewManager(d, tc.ReconnectDelay), endpoint, nil
}

// parseKey accepts either "author/name" or "author name".
func parseKey(args []string) (blueprint.Key, error) {
	var key blueprint.Key
	switch len(args) {
	case 1:
		author, name, ok := strings.Cut(args[0], "/")
		if !ok {
			return key, fmt.Errorf("expected AUTHOR/NAME, got %q", args[0])
		}
		key = blueprint.Key{Author: author, Name: name}
	case 2:
		key = blueprint.Key{Author: args[0], Name: args[1]}
	default:
		return key, fmt.Errorf("expected AUTHOR/NAME or AUTHOR NAME")
	}
	if err := key.Validate(); err != nil {
		return key, err
	}
	return key, nil
}
