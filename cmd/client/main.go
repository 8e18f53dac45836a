package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchalong/syncengine/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	backendURL = configVar[string]{
		envKey:       "SYNCENGINE_BACKEND_URL",
		flagKey:      "backend-url",
		defaultValue: "",
	}
	relayURL = configVar[string]{
		envKey:       "SYNCENGINE_RELAY_URL",
		flagKey:      "relay-url",
		defaultValue: "",
	}
	roomID = configVar[string]{
		envKey:       "SYNCENGINE_ROOM_ID",
		flagKey:      "room-id",
		defaultValue: "",
	}
	email = configVar[string]{
		envKey:       "SYNCENGINE_EMAIL",
		flagKey:      "email",
		defaultValue: "",
	}
	identity = configVar[string]{
		envKey:       "SYNCENGINE_IDENTITY",
		flagKey:      "identity",
		defaultValue: "",
	}
	avatarURL = configVar[string]{
		envKey:       "SYNCENGINE_AVATAR_URL",
		flagKey:      "avatar-url",
		defaultValue: "",
	}
	controlHost = configVar[string]{
		envKey:       "SYNCENGINE_CONTROL_HOST",
		flagKey:      "control-host",
		defaultValue: "127.0.0.1",
	}
	controlPort = configVar[int]{
		envKey:       "SYNCENGINE_CONTROL_PORT",
		flagKey:      "control-port",
		defaultValue: 7380,
	}
	logLevel = configVar[string]{
		envKey:       "SYNCENGINE_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	stunURLs = configVar[[]string]{
		envKey:       "SYNCENGINE_STUN_URLS",
		flagKey:      "stun-urls",
		defaultValue: []string{"stun:stun.l.google.com:19302"},
	}
	deferDelayMs = configVar[int]{
		envKey:       "SYNCENGINE_DEFER_DELAY_MS",
		flagKey:      "defer-delay-ms",
		defaultValue: 0,
	}
	backupDelayMs = configVar[int]{
		envKey:       "SYNCENGINE_BACKUP_DELAY_MS",
		flagKey:      "backup-delay-ms",
		defaultValue: 0,
	}
	backupPeerThreshold = configVar[int]{
		envKey:       "SYNCENGINE_BACKUP_PEER_THRESHOLD",
		flagKey:      "backup-peer-threshold",
		defaultValue: 0,
	}
	resyncIntervalSec = configVar[int]{
		envKey:       "SYNCENGINE_RESYNC_INTERVAL_SEC",
		flagKey:      "resync-interval-sec",
		defaultValue: 0,
	}
	reconnectDelayMs = configVar[int]{
		envKey:       "SYNCENGINE_RECONNECT_DELAY_MS",
		flagKey:      "reconnect-delay-ms",
		defaultValue: 0,
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(backendURL.flagKey, backendURL.defaultValue, "Backend REST base url")
	pflag.String(relayURL.flagKey, relayURL.defaultValue, "Signaling relay base url")
	pflag.String(roomID.flagKey, roomID.defaultValue, "Room to join")
	pflag.String(email.flagKey, email.defaultValue, "Email the bearer token is issued for")
	pflag.String(identity.flagKey, identity.defaultValue, "Participant identity in the room")
	pflag.String(avatarURL.flagKey, avatarURL.defaultValue, "Avatar url announced to the room")
	pflag.String(controlHost.flagKey, controlHost.defaultValue, "Local control API host")
	pflag.Int(controlPort.flagKey, controlPort.defaultValue, "Local control API port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.StringSlice(stunURLs.flagKey, stunURLs.defaultValue, "STUN servers for the peer mesh")
	pflag.Int(deferDelayMs.flagKey, deferDelayMs.defaultValue, "Websocket sync defer delay in milliseconds")
	pflag.Int(backupDelayMs.flagKey, backupDelayMs.defaultValue, "Websocket backup delay in milliseconds")
	pflag.Int(backupPeerThreshold.flagKey, backupPeerThreshold.defaultValue, "Mesh size above which every sync gets a websocket backup")
	pflag.Int(resyncIntervalSec.flagKey, resyncIntervalSec.defaultValue, "Periodic resync interval in seconds")
	pflag.Int(reconnectDelayMs.flagKey, reconnectDelayMs.defaultValue, "Relay reconnect delay in milliseconds")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(backendURL.flagKey, backendURL.envKey)
	viper.BindEnv(relayURL.flagKey, relayURL.envKey)
	viper.BindEnv(roomID.flagKey, roomID.envKey)
	viper.BindEnv(email.flagKey, email.envKey)
	viper.BindEnv(identity.flagKey, identity.envKey)
	viper.BindEnv(avatarURL.flagKey, avatarURL.envKey)
	viper.BindEnv(controlHost.flagKey, controlHost.envKey)
	viper.BindEnv(controlPort.flagKey, controlPort.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(stunURLs.flagKey, stunURLs.envKey)
	viper.BindEnv(deferDelayMs.flagKey, deferDelayMs.envKey)
	viper.BindEnv(backupDelayMs.flagKey, backupDelayMs.envKey)
	viper.BindEnv(backupPeerThreshold.flagKey, backupPeerThreshold.envKey)
	viper.BindEnv(resyncIntervalSec.flagKey, resyncIntervalSec.envKey)
	viper.BindEnv(reconnectDelayMs.flagKey, reconnectDelayMs.envKey)

	viper.SetDefault(backendURL.flagKey, backendURL.defaultValue)
	viper.SetDefault(relayURL.flagKey, relayURL.defaultValue)
	viper.SetDefault(roomID.flagKey, roomID.defaultValue)
	viper.SetDefault(email.flagKey, email.defaultValue)
	viper.SetDefault(identity.flagKey, identity.defaultValue)
	viper.SetDefault(avatarURL.flagKey, avatarURL.defaultValue)
	viper.SetDefault(controlHost.flagKey, controlHost.defaultValue)
	viper.SetDefault(controlPort.flagKey, controlPort.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(stunURLs.flagKey, stunURLs.defaultValue)
	viper.SetDefault(deferDelayMs.flagKey, deferDelayMs.defaultValue)
	viper.SetDefault(backupDelayMs.flagKey, backupDelayMs.defaultValue)
	viper.SetDefault(backupPeerThreshold.flagKey, backupPeerThreshold.defaultValue)
	viper.SetDefault(resyncIntervalSec.flagKey, resyncIntervalSec.defaultValue)
	viper.SetDefault(reconnectDelayMs.flagKey, reconnectDelayMs.defaultValue)

	config := &app.AppConfig{
		BackendURL:          viper.GetString(backendURL.flagKey),
		RelayURL:            viper.GetString(relayURL.flagKey),
		RoomID:              viper.GetString(roomID.flagKey),
		Email:               viper.GetString(email.flagKey),
		Identity:            viper.GetString(identity.flagKey),
		AvatarURL:           viper.GetString(avatarURL.flagKey),
		ControlHost:         viper.GetString(controlHost.flagKey),
		ControlPort:         viper.GetInt(controlPort.flagKey),
		LogLevel:            viper.GetString(logLevel.flagKey),
		STUNURLs:            viper.GetStringSlice(stunURLs.flagKey),
		DeferDelayMs:        viper.GetInt(deferDelayMs.flagKey),
		BackupDelayMs:       viper.GetInt(backupDelayMs.flagKey),
		BackupPeerThreshold: viper.GetInt(backupPeerThreshold.flagKey),
		ResyncIntervalSec:   viper.GetInt(resyncIntervalSec.flagKey),
		ReconnectDelayMs:    viper.GetInt(reconnectDelayMs.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting sync client with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
