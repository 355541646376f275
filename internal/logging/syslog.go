// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"log/syslog"
)

// SyslogConfig configures an optional remote syslog sink for deployments
// that want node/controller logs centralized off-device.
type SyslogConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Protocol string
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns the sink disabled, with the standard
// syslog UDP port and the LOG_USER facility.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "usdn",
		Facility: 1,
	}
}

// NewSyslogWriter dials a remote syslog daemon per cfg, filling in
// defaults for a zero Port, Protocol or Tag (Facility and Host are used
// as given). Enabled with no Host is an error: there is nothing to
// connect to.
func NewSyslogWriter(cfg SyslogConfig) (*syslog.Writer, error) {
	if cfg.Enabled && cfg.Host == "" {
		return nil, fmt.Errorf("logging: syslog enabled but no host configured")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "usdn"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return syslog.Dial(cfg.Protocol, addr, syslog.Priority(cfg.Facility)<<3|syslog.LOG_INFO, cfg.Tag)
}
