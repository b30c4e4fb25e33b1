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

package locator

import (
	"context"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/redisgate/redisgate/lib/httplib"
	"github.com/redisgate/redisgate/lib/services"
)

func redisService(name, namespace, instance string, ports ...v1.ServicePort) *v1.Service {
	return &v1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels: map[string]string{
				"app":      "redis",
				"instance": instance,
			},
		},
		Spec: v1.ServiceSpec{Ports: ports},
	}
}

func tcpPort(port int32) v1.ServicePort {
	return v1.ServicePort{Name: "redis", Protocol: v1.ProtocolTCP, Port: port}
}

func testInstance(slug string) *services.Instance {
	return &services.Instance{
		ID:             "6f0c7a9e-1f2d-4e3b-8a5c-0d9e8f7a6b5c",
		OrganizationID: "9b8a7c6d-5e4f-4a3b-2c1d-0e9f8a7b6c5d",
		Name:           slug,
		Slug:           slug,
		Namespace:      "default",
		ServiceName:    "redis-" + slug,
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{InCluster: true})
	require.True(t, trace.IsBadParameter(err), "expected BadParameter, got %v", err)

	_, err = New(Config{})
	require.NoError(t, err)
}

func TestLocateDirectAddr(t *testing.T) {
	t.Parallel()

	l, err := New(Config{DefaultPassword: "hunter2"})
	require.NoError(t, err)

	tests := []struct {
		desc string
		addr string
		port int
		want string
	}{
		{desc: "host with port used verbatim", addr: "10.0.0.5:7000", want: "10.0.0.5:7000"},
		{desc: "bare host joined with descriptor port", addr: "10.0.0.5", port: 7001, want: "10.0.0.5:7001"},
		{desc: "bare host falls back to redis port", addr: "redis.internal", want: "redis.internal:6379"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			inst := testInstance("cache")
			inst.Addr = tt.addr
			inst.Port = tt.port

			ep, err := l.Locate(context.Background(), inst)
			require.NoError(t, err)
			require.Equal(t, tt.want, ep.Addr)
			require.Equal(t, "hunter2", ep.Password)
		})
	}
}

func TestLocateLocalDevelopment(t *testing.T) {
	t.Parallel()

	l, err := New(Config{
		LocalPorts: map[string]int{"cache": 7777},
	})
	require.NoError(t, err)

	ep, err := l.Locate(context.Background(), testInstance("cache"))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7777", ep.Addr)
	require.Empty(t, ep.Password)

	// Slugs without a mapping land on the conventional local port.
	ep, err = l.Locate(context.Background(), testInstance("queue"))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6379", ep.Addr)
}

func TestLocateKubernetesService(t *testing.T) {
	t.Parallel()

	tests := []struct {
		desc    string
		objects []runtime.Object
		slug    string
		want    string
	}{
		{
			desc: "labeled service resolves to cluster dns",
			objects: []runtime.Object{
				redisService("redis-cache", "default", "cache", tcpPort(6380)),
			},
			slug: "cache",
			want: "redis-cache.default.svc.cluster.local:6380",
		},
		{
			desc: "label selector skips other instances",
			objects: []runtime.Object{
				redisService("redis-other", "default", "other", tcpPort(6379)),
			},
			slug: "cache",
		},
		{
			desc:    "no service at all",
			objects: nil,
			slug:    "cache",
		},
		{
			desc: "udp-only service is not dialable",
			objects: []runtime.Object{
				redisService("redis-cache", "default", "cache",
					v1.ServicePort{Name: "metrics", Protocol: v1.ProtocolUDP, Port: 9999}),
			},
			slug: "cache",
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			l, err := New(Config{
				Client:    fake.NewSimpleClientset(tt.objects...),
				InCluster: true,
			})
			require.NoError(t, err)

			ep, err := l.Locate(context.Background(), testInstance(tt.slug))
			if tt.want == "" {
				require.True(t, httplib.IsUnavailable(err), "expected Unavailable, got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, ep.Addr)
		})
	}
}

func TestLocatePassword(t *testing.T) {
	t.Parallel()

	secret := &v1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "redis-cache-auth", Namespace: "default"},
		Data:       map[string][]byte{"redis-password": []byte("s3cr3t")},
	}
	emptySecret := &v1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "redis-cache-auth", Namespace: "default"},
	}
	svc := redisService("redis-cache", "default", "cache", tcpPort(6379))

	tests := []struct {
		desc       string
		objects    []runtime.Object
		secretName string
		defaultPw  string
		want       string
		wantErr    bool
	}{
		{
			desc:       "referenced secret wins",
			objects:    []runtime.Object{svc, secret},
			secretName: "redis-cache-auth",
			defaultPw:  "fallback",
			want:       "s3cr3t",
		},
		{
			desc:      "no reference falls back to default",
			objects:   []runtime.Object{svc},
			defaultPw: "fallback",
			want:      "fallback",
		},
		{
			desc:    "no reference and no default means no auth",
			objects: []runtime.Object{svc},
			want:    "",
		},
		{
			desc:       "referenced secret missing",
			objects:    []runtime.Object{svc},
			secretName: "redis-cache-auth",
			wantErr:    true,
		},
		{
			desc:       "referenced secret missing the password key",
			objects:    []runtime.Object{svc, emptySecret},
			secretName: "redis-cache-auth",
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			l, err := New(Config{
				Client:          fake.NewSimpleClientset(tt.objects...),
				InCluster:       true,
				DefaultPassword: tt.defaultPw,
			})
			require.NoError(t, err)

			inst := testInstance("cache")
			inst.SecretName = tt.secretName

			ep, err := l.Locate(context.Background(), inst)
			if tt.wantErr {
				require.True(t, httplib.IsUnavailable(err), "expected Unavailable, got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, ep.Password)
		})
	}
}

func TestInKubeCluster(t *testing.T) {
	t.Setenv(kubeServiceHostEnv, "")
	require.False(t, InKubeCluster())

	t.Setenv(kubeServiceHostEnv, "10.96.0.1")
	require.True(t, InKubeCluster())
}
