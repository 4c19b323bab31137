package run

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/analytics"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/channel"
	"github.com/relex/logchannel/defs"
	"github.com/relex/logchannel/prefs"
	"golang.org/x/exp/slices"
)

const prefInstallIDKey = "installId"

// Loader loads configuration from file and prepares the environments to be launched
//
// Loader should take care of everything derived from the config file, but not trigger anything automatically
type Loader struct {
	filepath string // config file path
	logger   logger.Logger

	Config
	MetricFactory *promreg.MetricFactory
	Prefs         *prefs.Store
	InstallID     uuid.UUID
}

// Launched holds the running channel and its collaborators
type Launched struct {
	logger      logger.Logger
	Channel     *channel.Channel
	Analytics   *analytics.Analytics
	Persistence base.PersistenceStore
	Ingestion   base.IngestionClient
}

// NewLoaderFromConfigFile loads config file and preferences
func NewLoaderFromConfigFile(filepath string, metricPrefix string) (*Loader, error) {
	config, configErr := LoadConfigFile(filepath)
	if configErr != nil {
		return nil, configErr
	}
	llogger := logger.WithField(defs.LabelComponent, "Loader")

	prefStore, prefErr := prefs.Open(logger.Root(), config.Analytics.PrefsPath)
	if prefErr != nil {
		return nil, prefErr
	}
	installID, idErr := resolveInstallID(llogger, config.InstallID, prefStore)
	if idErr != nil {
		return nil, idErr
	}

	return &Loader{
		filepath:      filepath,
		logger:        llogger,
		Config:        *config,
		MetricFactory: promreg.NewMetricFactory(metricPrefix, nil, nil),
		Prefs:         prefStore,
		InstallID:     installID,
	}, nil
}

// resolveInstallID picks the install ID from config, or from preferences where a new one is saved if none
func resolveInstallID(llogger logger.Logger, configured string, prefStore *prefs.Store) (uuid.UUID, error) {
	if configured != "" {
		return uuid.Parse(configured)
	}
	if saved := prefStore.GetString(prefInstallIDKey, ""); saved != "" {
		if id, err := uuid.Parse(saved); err == nil {
			return id, nil
		}
		llogger.Warnf("replace invalid install ID in preferences: '%s'", saved)
	}
	id := uuid.New()
	if err := prefStore.PutString(prefInstallIDKey, id.String()); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save install ID: %w", err)
	}
	llogger.Infof("generated install ID %s", id)
	return id, nil
}

// Launch creates persistence and ingestion, then starts the channel with all configured groups
func (loader *Loader) Launch() (*Launched, error) {
	store, perr := loader.Persistence.Value.NewPersistence(logger.Root(), loader.MetricFactory)
	if perr != nil {
		return nil, fmt.Errorf("persistence: %w", perr)
	}
	client, ierr := loader.Ingestion.Value.NewIngestion(logger.Root(), loader.MetricFactory)
	if ierr != nil {
		store.Close()
		return nil, fmt.Errorf("ingestion: %w", ierr)
	}

	ch := channel.New(logger.Root(), loader.MetricFactory, channel.Args{
		AppSecret:     loader.AppSecret,
		InstallID:     loader.InstallID,
		Persistence:   store,
		Ingestion:     client,
		IsRecoverable: client.IsRecoverable,
	})

	launched := &Launched{
		logger:      logger.WithField(defs.LabelComponent, "Launcher"),
		Channel:     ch,
		Analytics:   analytics.New(logger.Root(), loader.MetricFactory, loader.Prefs, loader.analyticsOptions()),
		Persistence: store,
		Ingestion:   client,
	}
	if err := loader.ApplyGroups(launched); err != nil {
		launched.Shutdown()
		return nil, err
	}

	for _, group := range store.ListGroups() {
		if !slices.Contains(ch.GroupNames(), group) {
			launched.logger.Warnf("group '%s' has persisted logs but isn't configured", group)
		}
	}
	return launched, nil
}

// ApplyGroups registers or updates configured groups, and removes groups no longer in config
func (loader *Loader) ApplyGroups(launched *Launched) error {
	ch := launched.Channel
	for _, existing := range ch.GroupNames() {
		if existing != defs.AnalyticsGroup && loader.FindGroup(existing) == nil {
			ch.RemoveGroup(existing)
		}
	}
	for _, group := range loader.Groups {
		if group.Name == defs.AnalyticsGroup {
			continue
		}
		if err := ch.AddGroup(group.Name, group.Threshold, group.Interval, group.MaxParallelBatches, nil); err != nil {
			return fmt.Errorf("group '%s': %w", group.Name, err)
		}
	}
	if !loader.Config.Analytics.Enabled {
		return nil
	}
	launched.Analytics.SetOptions(loader.analyticsOptions())
	if err := launched.Analytics.OnChannelReady(ch); err != nil {
		return fmt.Errorf("analytics: %w", err)
	}
	return nil
}

func (loader *Loader) analyticsOptions() analytics.Options {
	options := analytics.DefaultOptions()
	if group := loader.FindGroup(defs.AnalyticsGroup); group != nil {
		options.Threshold = group.Threshold
		options.Interval = group.Interval
		options.MaxParallel = group.MaxParallelBatches
	}
	return options
}

// Shutdown stops the channel, waiting for in-flight batches, then closes ingestion and persistence
//
// Unsent logs stay in persistence for the next run
func (launched *Launched) Shutdown() {
	if !launched.Channel.Shutdown(defs.ChannelShutdownTimeout) {
		launched.logger.Warnf("in-flight batches not completed, to be resent at next start")
	}
	launched.Ingestion.Close()
	launched.Persistence.Close()
	launched.logger.Info("shut down")
}
