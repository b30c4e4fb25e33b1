/*
 * RedisGate
 * Copyright (C) 2025  RedisGate Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package locator resolves instance descriptors to dialable Redis endpoints.
//
// In-cluster resolution lists Kubernetes Services labeled for the instance
// and builds the cluster-local DNS name; out-of-cluster resolution falls back
// to a configured slug-to-localhost port map for development. Every other
// component treats instances as opaque keys, so swapping the discovery
// backend never touches the rest of the gateway.
package locator

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/gravitational/trace"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/redisgate/redisgate"
	"github.com/redisgate/redisgate/lib/defaults"
	"github.com/redisgate/redisgate/lib/httplib"
	"github.com/redisgate/redisgate/lib/services"
)

// kubeServiceHostEnv is injected into every pod by the kubelet; its presence
// switches the gateway to in-cluster discovery.
const kubeServiceHostEnv = "KUBERNETES_SERVICE_HOST"

// InKubeCluster reports whether the process is running inside a Kubernetes
// cluster.
func InKubeCluster() bool {
	return os.Getenv(kubeServiceHostEnv) != ""
}

// NewInClusterClient builds a Kubernetes client from the pod's service
// account credentials.
func NewInClusterClient() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, trace.Wrap(err, "loading in-cluster kubernetes config")
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return client, nil
}

// Endpoint is a resolved Redis target.
type Endpoint struct {
	// Addr is the host:port to dial.
	Addr string
	// Password authenticates the connection; empty means no auth.
	Password string
}

// Config holds locator parameters.
type Config struct {
	// Client is the Kubernetes API client. Required in-cluster, unused
	// otherwise.
	Client kubernetes.Interface
	// InCluster selects Kubernetes service discovery over the local
	// development port map.
	InCluster bool
	// DefaultPassword authenticates instances that reference no secret.
	DefaultPassword string
	// LocalPorts maps instance slugs to localhost ports for development.
	LocalPorts map[string]int
	// DiscoveryTimeout bounds each Kubernetes API call.
	DiscoveryTimeout time.Duration
	// Log is the logger. Defaults to the process logger.
	Log *slog.Logger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.InCluster && c.Client == nil {
		return trace.BadParameter("missing parameter Client")
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = defaults.DiscoveryTimeout
	}
	if c.Log == nil {
		c.Log = slog.Default().With(redisgate.ComponentKey, redisgate.ComponentLocator)
	}
	return nil
}

// Locator maps instance descriptors to Redis endpoints.
type Locator struct {
	cfg Config
}

// New returns a locator for the given config.
func New(cfg Config) (*Locator, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Locator{cfg: cfg}, nil
}

// Locate resolves the instance to a dialable endpoint and credential.
func (l *Locator) Locate(ctx context.Context, inst *services.Instance) (*Endpoint, error) {
	if inst == nil {
		return nil, trace.BadParameter("missing instance")
	}
	addr, err := l.resolveAddr(ctx, inst)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	password, err := l.resolvePassword(ctx, inst)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	l.cfg.Log.DebugContext(ctx, "Resolved redis endpoint.",
		"instance", inst.ID,
		"slug", inst.Slug,
		"addr", addr,
	)
	return &Endpoint{Addr: addr, Password: password}, nil
}

func (l *Locator) resolveAddr(ctx context.Context, inst *services.Instance) (string, error) {
	// A direct address hint on the descriptor wins in any mode.
	if inst.Addr != "" {
		if _, _, err := net.SplitHostPort(inst.Addr); err == nil {
			return inst.Addr, nil
		}
		port := inst.Port
		if port == 0 {
			port = defaults.RedisPort
		}
		return net.JoinHostPort(inst.Addr, strconv.Itoa(port)), nil
	}
	if !l.cfg.InCluster {
		port, ok := l.cfg.LocalPorts[inst.Slug]
		if !ok {
			port = defaults.RedisPort
		}
		return net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), nil
	}
	return l.discoverService(ctx, inst)
}

// discoverService finds the instance's Service by label and returns its
// cluster-local DNS address on the first TCP port the Service declares.
func (l *Locator) discoverService(ctx context.Context, inst *services.Instance) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.DiscoveryTimeout)
	defer cancel()

	selector := labels.Set{
		redisgate.LabelApp:      redisgate.LabelAppValue,
		redisgate.LabelInstance: inst.Slug,
	}.String()

	var svc *v1.Service
	// The API returns large lists in pages; follow the continue token.
	for nextToken := ""; ; {
		list, err := l.cfg.Client.CoreV1().Services(inst.Namespace).List(ctx, metav1.ListOptions{
			LabelSelector: selector,
			Continue:      nextToken,
		})
		if err != nil {
			return "", httplib.Unavailable("listing redis services for instance %q: %v", inst.Slug, err)
		}
		if len(list.Items) > 0 {
			svc = &list.Items[0]
			break
		}
		nextToken = list.Continue
		if nextToken == "" {
			break
		}
	}
	if svc == nil {
		return "", httplib.Unavailable("no redis service found for instance %q in namespace %q", inst.Slug, inst.Namespace)
	}

	for _, p := range svc.Spec.Ports {
		if p.Protocol != v1.ProtocolTCP {
			continue
		}
		host := fmt.Sprintf("%s.%s.svc.cluster.local", svc.Name, svc.Namespace)
		return net.JoinHostPort(host, strconv.Itoa(int(p.Port))), nil
	}
	return "", httplib.Unavailable("redis service %q declares no TCP ports", svc.Name)
}

func (l *Locator) resolvePassword(ctx context.Context, inst *services.Instance) (string, error) {
	if inst.SecretName == "" || !l.cfg.InCluster {
		return l.cfg.DefaultPassword, nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.cfg.DiscoveryTimeout)
	defer cancel()

	secret, err := l.cfg.Client.CoreV1().Secrets(inst.Namespace).Get(ctx, inst.SecretName, metav1.GetOptions{})
	if err != nil {
		return "", httplib.Unavailable("reading redis secret %q: %v", inst.SecretName, err)
	}
	password, ok := secret.Data[redisgate.SecretPasswordKey]
	if !ok {
		return "", httplib.Unavailable("redis secret %q has no %q key", inst.SecretName, redisgate.SecretPasswordKey)
	}
	return string(password), nil
}
