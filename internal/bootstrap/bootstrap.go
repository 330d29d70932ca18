package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fundingstack/docintake/internal/config"
	"github.com/fundingstack/docintake/internal/core/ports"
	"github.com/fundingstack/docintake/internal/core/usecase"
	"github.com/fundingstack/docintake/internal/infrastructure/classify"
	"github.com/fundingstack/docintake/internal/infrastructure/crypto/localkms"
	"github.com/fundingstack/docintake/internal/infrastructure/extract"
	"github.com/fundingstack/docintake/internal/infrastructure/extractor/pdftext"
	"github.com/fundingstack/docintake/internal/infrastructure/imaging"
	"github.com/fundingstack/docintake/internal/infrastructure/inference/httpscore"
	"github.com/fundingstack/docintake/internal/infrastructure/ocr"
	"github.com/fundingstack/docintake/internal/infrastructure/ocr/tesseract"
	natsqueue "github.com/fundingstack/docintake/internal/infrastructure/queue/nats"
	"github.com/fundingstack/docintake/internal/infrastructure/repository/postgres"
	"github.com/fundingstack/docintake/internal/infrastructure/resilience"
	"github.com/fundingstack/docintake/internal/infrastructure/sanitize"
	"github.com/fundingstack/docintake/internal/infrastructure/storage/localfs"
)

// App is the wired object graph. The api and worker processes share one
// bootstrap and serve the pieces they need.
type App struct {
	Config config.Config

	Queue  ports.MessageQueue
	Repo   ports.DocumentRepository
	Reader ports.DocumentReader

	IntakeUC  ports.DocumentIntake
	ProcessUC *usecase.ProcessDocumentUseCase

	closeFn func()
}

// New wires the intake pipeline. sink may be nil for processes that do not
// record pipeline metrics.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, sink ports.MetricsSink) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	blobs, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	encryptor, err := localkms.NewFromKeyFile(cfg.EncryptionKeyFile, cfg.EncryptionKeyRef)
	if err != nil {
		return nil, fmt.Errorf("init field encryption: %w", err)
	}

	profiles, err := classify.LoadProfiles(cfg.ClassifyProfilePath)
	if err != nil {
		return nil, fmt.Errorf("load classification profiles: %w", err)
	}
	featurizer, err := classify.NewFeaturizer(profiles)
	if err != nil {
		return nil, fmt.Errorf("compile classification profiles: %w", err)
	}

	scoreExec := resilience.NewExecutor(resilience.DefaultConfig())
	primary := httpscore.New(httpscore.Config{Name: "primary", BaseURL: cfg.ScoreServiceURL}, scoreExec)
	var secondary ports.TypeModel
	if cfg.SecondaryScoreServiceURL != "" {
		secondary = httpscore.New(httpscore.Config{Name: "secondary", BaseURL: cfg.SecondaryScoreServiceURL}, scoreExec)
	}
	classifier := classify.NewEnsemble(primary, secondary, featurizer, classify.DefaultEnsembleConfig(), log)

	thresholds, err := extract.LoadThresholds(cfg.ExtractThresholdPath)
	if err != nil {
		return nil, fmt.Errorf("load extraction thresholds: %w", err)
	}

	ocrCfg := ocr.DefaultConfig()
	if cfg.OCRLanguage != "" {
		ocrCfg.Languages = []string{cfg.OCRLanguage}
	}
	recognizer := ocr.NewExtractor(tesseract.New(), resilience.NewExecutor(resilience.DefaultConfig()), ocrCfg, log)

	intakeUC := usecase.NewIngestDocumentUseCase(repo, blobs, queue, log)
	processUC := usecase.NewProcessDocumentUseCase(usecase.ProcessDeps{
		Repo:       repo,
		Blobs:      blobs,
		Normalizer: imaging.NewNormalizer(imaging.DefaultConfig(), log),
		Recognizer: recognizer,
		Classifier: classifier,
		Extractor:  extract.NewExtractor(thresholds),
		Sanitizer:  sanitize.New(encryptor),
		PDFText:    pdftext.New(log),
		Metrics:    sink,
	}, usecase.ProcessConfig{
		OCRLanguage:       cfg.OCRLanguage,
		OCRTimeout:        cfg.OCRTimeout,
		ClassifyTimeout:   cfg.ClassifyTimeout,
		PDFTextConfidence: cfg.PDFTextConfidence,
	}, log)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,
		Reader: repo,

		IntakeUC:  intakeUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
