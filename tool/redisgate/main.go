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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/redisgate/redisgate"
	"github.com/redisgate/redisgate/lib/config"
	"github.com/redisgate/redisgate/lib/jwt"
	"github.com/redisgate/redisgate/lib/service"
	"github.com/redisgate/redisgate/lib/services"
	"github.com/redisgate/redisgate/lib/utils"
)

const appHelp = `RedisGate

RedisGate is an HTTP gateway for managed Redis instances: it authenticates
bearer tokens, locates the instance behind a request and forwards Redis
commands expressed as URL paths or JSON bodies.

The gateway is configured through a YAML file (` + "`-c`" + `), environment
variables and command line flags, applied in that order.`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := Run(ctx, os.Args[1:]); err != nil {
		utils.FatalError(err)
	}
}

type tokenFlags struct {
	id     string
	org    string
	user   string
	email  string
	scopes []string
	ttl    time.Duration
}

// Run parses command line arguments and dispatches to the selected command.
func Run(ctx context.Context, args []string) error {
	var clf config.CommandLineFlags
	var tf tokenFlags

	app := utils.InitCLIParser("redisgate", appHelp).Interspersed(false)
	app.Flag("config", "Path to a configuration file in YAML format.").
		Short('c').StringVar(&clf.ConfigFile)
	app.Flag("debug", "Verbose logging to stdout.").
		Short('d').BoolVar(&clf.Debug)
	app.HelpFlag.Short('h')

	startCmd := app.Command("start", "Start the gateway.")
	startCmd.Flag("listen-addr", "Address to listen on, overrides the config file.").
		StringVar(&clf.ListenAddr)

	tokenCmd := app.Command("token", "Issue bearer tokens signed with the configured secret.")
	apiKeyCmd := tokenCmd.Command("api-key", "Issue a long-lived api key token.")
	apiKeyCmd.Flag("id", "API key id. A random one is generated when omitted.").
		StringVar(&tf.id)
	apiKeyCmd.Flag("org", "Organization id the token is bound to.").
		Required().StringVar(&tf.org)
	apiKeyCmd.Flag("user", "User id recorded in the token.").
		StringVar(&tf.user)
	apiKeyCmd.Flag("scopes", "Scope granted to the token: read, write or admin. Repeatable.").
		StringsVar(&tf.scopes)
	apiKeyCmd.Flag("ttl", "Token lifetime. Defaults to one year.").
		DurationVar(&tf.ttl)

	sessionCmd := tokenCmd.Command("session", "Issue a short-lived user session token.")
	sessionCmd.Flag("user", "User id recorded in the token.").
		Required().StringVar(&tf.user)
	sessionCmd.Flag("email", "User email recorded in the token.").
		StringVar(&tf.email)
	sessionCmd.Flag("org", "Organization id the token is bound to.").
		StringVar(&tf.org)
	sessionCmd.Flag("ttl", "Token lifetime. Defaults to 24 hours.").
		DurationVar(&tf.ttl)

	versionCmd := app.Command("version", "Print the version of this redisgate binary.")

	command, err := app.Parse(args)
	if err != nil {
		app.Usage(args)
		return trace.Wrap(err)
	}

	switch command {
	case startCmd.FullCommand():
		err = onStart(ctx, &clf)
	case apiKeyCmd.FullCommand():
		err = onTokenAPIKey(&clf, &tf)
	case sessionCmd.FullCommand():
		err = onTokenSession(&clf, &tf)
	case versionCmd.FullCommand():
		fmt.Printf("redisgate v%v %v\n", redisgate.Version, runtime.Version())
	default:
		// This should only happen when there's a missing switch case above.
		err = trace.BadParameter("command %q not configured", command)
	}
	return trace.Wrap(err)
}

func onStart(ctx context.Context, clf *config.CommandLineFlags) error {
	cfg := config.MakeDefaultConfig()
	if err := config.Configure(clf, cfg); err != nil {
		return trace.Wrap(err)
	}
	svc, err := service.New(ctx, cfg)
	if err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(svc.Run(ctx))
}

func onTokenAPIKey(clf *config.CommandLineFlags, tf *tokenFlags) error {
	for _, scope := range tf.scopes {
		switch scope {
		case services.ScopeRead, services.ScopeWrite, services.ScopeAdmin, services.ScopeWildcard:
		default:
			return trace.BadParameter("unknown scope %q, expected read, write or admin", scope)
		}
	}
	tokens, err := tokenService(clf)
	if err != nil {
		return trace.Wrap(err)
	}
	id := tf.id
	if id == "" {
		id = uuid.NewString()
	}
	token, err := tokens.SignAPIKey(jwt.APIKeyParams{
		APIKeyID:       id,
		OrganizationID: tf.org,
		UserID:         tf.user,
		Scopes:         tf.scopes,
		TTL:            tf.ttl,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	fmt.Printf("API key id: %v\nKey prefix: %v\nToken:      %v\n", id, jwt.KeyPrefix(id), token)
	return nil
}

func onTokenSession(clf *config.CommandLineFlags, tf *tokenFlags) error {
	tokens, err := tokenService(clf)
	if err != nil {
		return trace.Wrap(err)
	}
	token, err := tokens.SignSession(jwt.SessionParams{
		UserID:         tf.user,
		Email:          tf.email,
		OrganizationID: tf.org,
		TTL:            tf.ttl,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	fmt.Printf("Token: %v\n", token)
	return nil
}

// tokenService resolves just enough configuration to sign tokens: the
// secret can come from the config file or the JWT_SECRET environment
// variable.
func tokenService(clf *config.CommandLineFlags) (*jwt.Service, error) {
	cfg := config.MakeDefaultConfig()
	if err := config.Configure(clf, cfg); err != nil {
		return nil, trace.Wrap(err)
	}
	tokens, err := jwt.New(jwt.Config{Secret: cfg.JWTSecret})
	return tokens, trace.Wrap(err)
}
