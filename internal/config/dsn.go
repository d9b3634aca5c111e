package config

import (
	"net"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSNValue returns the explicit DSN, or formats one from the individual
// fields with the driver's own encoder.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	dsn := mysql.NewConfig()
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(orDefault(c.Host, defaultDBHost), strconv.Itoa(intOrDefault(c.Port, defaultDBPort)))
	dsn.User = orDefault(c.User, defaultDBUser)
	dsn.Passwd = orDefault(c.Password, defaultDBPassword)
	dsn.DBName = orDefault(c.Name, defaultDBName)
	dsn.ParseTime = c.ParseTime
	if loc, err := time.LoadLocation(orDefault(c.Loc, defaultDBLoc)); err == nil {
		dsn.Loc = loc
	}

	dsn.Params = map[string]string{"charset": orDefault(c.Charset, defaultDBCharset)}
	for k, v := range trimmedParams(c.Params) {
		dsn.Params[k] = v
	}
	return dsn.FormatDSN()
}

// URLValue returns a redis:// (or rediss://) URL usable by redis.ParseURL.
func (c RedisRuntimeConfig) URLValue() string {
	if u := normalizeRedisRawURL(c.URL); u != "" {
		return u
	}

	db := c.DB
	if db < 0 {
		db = defaultRedisDB
	}
	u := &neturl.URL{
		Scheme: "redis",
		Host:   net.JoinHostPort(orDefault(c.Host, defaultRedisHost), strconv.Itoa(intOrDefault(c.Port, defaultRedisPort))),
		Path:   "/" + strconv.Itoa(db),
	}
	if c.TLS {
		u.Scheme = "rediss"
	}

	username := strings.TrimSpace(c.Username)
	password := strings.TrimSpace(c.Password)
	switch {
	case password != "":
		u.User = neturl.UserPassword(username, password)
	case username != "":
		u.User = neturl.User(username)
	}

	if params := trimmedParams(c.Params); len(params) > 0 {
		query := neturl.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func intOrDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// trimmedParams drops entries whose key or value is blank.
func trimmedParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
