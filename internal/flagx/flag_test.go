package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		names []string
		want  []string
	}{
		{
			name:  "separate value",
			args:  []string{"-d", "postgres://db", "-x", "1"},
			names: []string{"d"},
			want:  []string{"-d", "postgres://db"},
		},
		{
			name:  "inline value, double dash",
			args:  []string{"--a=:9090", "-l", "debug"},
			names: []string{"a"},
			want:  []string{"--a=:9090"},
		},
		{
			name:  "order preserved across flags",
			args:  []string{"-n", "50", "--data-dir", "/tmp", "-a", ":1"},
			names: []string{"a", "n"},
			want:  []string{"-n", "50", "-a", ":1"},
		},
		{
			name:  "trailing flag without value",
			args:  []string{"-o"},
			names: []string{"o"},
			want:  []string{"-o"},
		},
		{
			name:  "next dash token is not a value",
			args:  []string{"-c", "--config=alt.jsonc"},
			names: []string{"c", "config"},
			want:  []string{"-c", "--config=alt.jsonc"},
		},
		{
			name:  "positionals and bare dashes dropped",
			args:  []string{"serve", "-", "--", "-a", ":1"},
			names: []string{"a"},
			want:  []string{"-a", ":1"},
		},
		{
			name:  "nothing matches",
			args:  nil,
			names: []string{"a"},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.names...))
		})
	}
}

func TestConfigPath(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"-c", "/etc/gk.jsonc"}, "/etc/gk.jsonc"},
		{"long inline", []string{"-a", ":8080", "--config=/etc/gk.jsonc", "-d", "postgres://x"}, "/etc/gk.jsonc"},
		{"last wins", []string{"-c", "one.jsonc", "-config", "two.jsonc"}, "two.jsonc"},
		{"absent", []string{"-a", ":8080"}, ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigPath(tt.args))
		})
	}
}
