// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/user"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// ConnInfo describes how to reach the cluster's default database.
type ConnInfo struct {
	// Host is the socket directory.
	Host string
	// Port is zero when the server only listens on its default socket.
	Port     uint16
	Database string
	User     string
}

// NewConnInfo returns the connection info for the database createdb makes
// by default: the one named after the connecting user.
func NewConnInfo(dir string, port uint16) ConnInfo {
	name := currentUser()
	return ConnInfo{Host: dir, Port: port, Database: name, User: name}
}

func currentUser() string {
	if name := os.Getenv("PGUSER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

// DSN returns a postgres:// URL with the socket directory in the host
// query parameter.
func (c ConnInfo) DSN() string {
	u := url.URL{Scheme: "postgres", Path: "/" + c.Database}
	if c.User != "" {
		u.User = url.User(c.User)
	}
	q := url.Values{}
	q.Set("host", c.Host)
	if c.Port != 0 {
		q.Set("port", strconv.Itoa(int(c.Port)))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Env returns the libpq environment for a process connecting to the cluster.
func (c ConnInfo) Env() []string {
	env := []string{"PGHOST=" + c.Host}
	if c.Port != 0 {
		env = append(env, "PGPORT="+strconv.Itoa(int(c.Port)))
	}
	return append(env, "DATABASE_URL="+c.DSN())
}

// Ping opens a connection to the cluster, pings it and closes it again.
func Ping(ctx context.Context, info ConnInfo) error {
	cfg, err := pgx.ParseConfig(info.DSN())
	if err != nil {
		return fmt.Errorf("invalid connection string: %w", err)
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(context.Background())

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
