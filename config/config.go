// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/cardinalhq/songlake/internal/etl"
	"github.com/cardinalhq/songlake/internal/notify"
	"github.com/cardinalhq/songlake/internal/storageprofile"
)

// DefaultCredentialsFile is read from the working directory when no
// credentials file is named. It is an INI file with an [AWS] section.
const DefaultCredentialsFile = "dl.cfg"

// Config aggregates configuration for the application.
// Each field is owned by its respective package.
type Config struct {
	ETL     etl.Config                    `mapstructure:",squash"`
	Storage storageprofile.StorageProfile `mapstructure:"storage"`
	Notify  notify.Config                 `mapstructure:"notify"`

	// AWS holds static keys from the credentials file. Empty keys mean the
	// default AWS credential chain is used.
	AWS AWSCredentials `mapstructure:"-"`
}

type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "SONGLAKE" and the dot character
// in keys is replaced by an underscore. For example, "output.mode" becomes
// "SONGLAKE_OUTPUT_MODE".
//
// configFile may be empty, in which case ./config.yaml is used if present.
// credFile may be empty, in which case ./dl.cfg is used if present.
func Load(configFile, credFile string) (*Config, error) {
	defaults := Config{
		ETL:     etl.DefaultConfig(),
		Storage: storageprofile.DefaultConfig(),
		Notify:  notify.DefaultConfig(),
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("SONGLAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerKeys(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Decode into a zero Config. Decoding over the defaults would merge
	// slices element-wise instead of replacing them.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	creds, err := loadCredentials(credFile)
	if err != nil {
		return nil, err
	}
	cfg.AWS = creds

	return cfg, nil
}

func loadCredentials(credFile string) (AWSCredentials, error) {
	if credFile == "" {
		if _, err := os.Stat(DefaultCredentialsFile); err != nil {
			return AWSCredentials{}, nil
		}
		credFile = DefaultCredentialsFile
	}

	v := viper.New()
	v.SetConfigFile(credFile)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return AWSCredentials{}, fmt.Errorf("read credentials %s: %w", credFile, err)
	}

	creds := AWSCredentials{
		AccessKeyID:     strings.TrimSpace(v.GetString("aws.aws_access_key_id")),
		SecretAccessKey: strings.TrimSpace(v.GetString("aws.aws_secret_access_key")),
	}
	if (creds.AccessKeyID == "") != (creds.SecretAccessKey == "") {
		return AWSCredentials{}, fmt.Errorf("credentials %s: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together", credFile)
	}
	return creds, nil
}

// registerKeys walks cfg and, for every leaf key, records its value as the
// viper default and binds the matching environment variable.
func registerKeys(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if tag == "-" {
			continue
		}
		if f.Type.Kind() == reflect.Struct && strings.Contains(opts, "squash") {
			registerKeys(v, val.Field(i).Interface(), parts...)
			continue
		}
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string{}, parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			registerKeys(v, val.Field(i).Interface(), key...)
			continue
		}
		name := strings.Join(key, ".")
		v.SetDefault(name, val.Field(i).Interface())
		_ = v.BindEnv(name)
	}
}
