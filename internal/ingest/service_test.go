package ingest

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"newsreader/internal/ai"
	"newsreader/internal/domain"
	"newsreader/internal/ingest/mocks"
	"newsreader/internal/scraper"
)

type ServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	store      *mocks.MockArticleStore
	techcrunch *mocks.MockSource
	franceinfo *mocks.MockSource
	cache      *mocks.MockCacheRefresher
	publisher  *mocks.MockPublisher
	notifier   *mocks.MockNotifier
	pretreater *mocks.MockPretreater

	service *Service
}

func (s *ServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.store = mocks.NewMockArticleStore(s.ctrl)
	s.techcrunch = mocks.NewMockSource(s.ctrl)
	s.franceinfo = mocks.NewMockSource(s.ctrl)
	s.cache = mocks.NewMockCacheRefresher(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.pretreater = mocks.NewMockPretreater(s.ctrl)

	s.techcrunch.EXPECT().Name().Return(domain.SourceTechCrunch).AnyTimes()
	s.franceinfo.EXPECT().Name().Return(domain.SourceFranceInfo).AnyTimes()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s.service = NewService(
		s.store,
		[]Source{s.techcrunch, s.franceinfo},
		s.cache,
		logger,
		WithPublisher(s.publisher),
		WithNotifier(s.notifier),
		WithPretreater(s.pretreater),
	)
}

func (s *ServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) TestRunOnce_NewArticles() {
	ctx := context.Background()
	existing := []domain.Article{{Title: "Known", URL: "https://known"}}
	tc := []domain.Article{{Title: "A", URL: "https://a", Source: domain.SourceTechCrunch}}
	fi := []domain.Article{{Title: "B", URL: "https://b", Source: domain.SourceFranceInfo}}

	s.store.EXPECT().Load(gomock.Any()).Return(existing)
	s.techcrunch.EXPECT().Scrape(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, seen *scraper.Seen) ([]domain.Article, error) {
			s.True(seen.HasURL("https://known"), "stored articles are pre-filtered")
			return tc, nil
		})
	s.franceinfo.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(fi, nil)
	s.store.EXPECT().InsertNew(gomock.Any(), append(append([]domain.Article{}, tc...), fi...)).Return(append(tc, fi...), nil)

	gomock.InOrder(
		s.cache.EXPECT().UpdateAfterModification(gomock.Any()),
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2),
		s.notifier.EXPECT().NotifyNewArticles(gomock.Any(), gomock.Len(2)).Return(nil),
		s.pretreater.EXPECT().PretreatAll(gomock.Any()).Return(ai.PretreatStats{Pending: 2, Processed: 2}, nil),
		s.cache.EXPECT().UpdateAfterModification(gomock.Any()),
	)

	stats, err := s.service.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.Added)
	s.Equal(2, stats.Published)
	s.Equal(1, stats.Scraped[domain.SourceTechCrunch])
	s.Equal(1, stats.Scraped[domain.SourceFranceInfo])
	s.Equal(2, stats.Pretreat.Processed)
}

func (s *ServiceTestSuite) TestRunOnce_NothingNew() {
	s.store.EXPECT().Load(gomock.Any()).Return(nil)
	s.techcrunch.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.franceinfo.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.pretreater.EXPECT().PretreatAll(gomock.Any()).Return(ai.PretreatStats{}, nil)

	stats, err := s.service.RunOnce(context.Background())
	s.Require().NoError(err)
	s.Zero(stats.Added)
}

func (s *ServiceTestSuite) TestRunOnce_OneSourceFails() {
	fi := []domain.Article{{Title: "B", URL: "https://b"}}

	s.store.EXPECT().Load(gomock.Any()).Return(nil)
	s.techcrunch.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, errors.New("listing down"))
	s.franceinfo.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(fi, nil)
	s.store.EXPECT().InsertNew(gomock.Any(), fi).Return(fi, nil)
	s.cache.EXPECT().UpdateAfterModification(gomock.Any())
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	s.notifier.EXPECT().NotifyNewArticles(gomock.Any(), fi).Return(errors.New("telegram down"))
	s.pretreater.EXPECT().PretreatAll(gomock.Any()).Return(ai.PretreatStats{}, ai.ErrPretreatmentRunning)

	stats, err := s.service.RunOnce(context.Background())
	s.Require().NoError(err, "side channel failures do not fail the run")
	s.Equal(1, stats.SourceErrors)
	s.Equal(1, stats.Added)
	s.Zero(stats.Published)
}

func (s *ServiceTestSuite) TestRunOnce_AllSourcesFail() {
	s.store.EXPECT().Load(gomock.Any()).Return(nil)
	s.techcrunch.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, errors.New("down"))
	s.franceinfo.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, errors.New("down"))

	_, err := s.service.RunOnce(context.Background())
	s.ErrorIs(err, ErrAllSourcesFailed)
}

func (s *ServiceTestSuite) TestRunOnce_StoreError() {
	fi := []domain.Article{{Title: "B", URL: "https://b"}}

	s.store.EXPECT().Load(gomock.Any()).Return(nil)
	s.techcrunch.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.franceinfo.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(fi, nil)
	s.store.EXPECT().InsertNew(gomock.Any(), fi).Return(nil, errors.New("disk full"))

	_, err := s.service.RunOnce(context.Background())
	s.Error(err)
}

func (s *ServiceTestSuite) TestRunOnce_PretreatmentFailure() {
	s.store.EXPECT().Load(gomock.Any()).Return(nil)
	s.techcrunch.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.franceinfo.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, nil)

	s.pretreater.EXPECT().PretreatAll(gomock.Any()).Return(ai.PretreatStats{}, ai.ErrModelNotConfigured)
	_, err := s.service.RunOnce(context.Background())
	s.NoError(err, "missing model is only logged")
}

func (s *ServiceTestSuite) TestRunOnce_PretreatmentStorageError() {
	s.store.EXPECT().Load(gomock.Any()).Return(nil)
	s.techcrunch.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.franceinfo.EXPECT().Scrape(gomock.Any(), gomock.Any()).Return(nil, nil)

	s.pretreater.EXPECT().PretreatAll(gomock.Any()).Return(ai.PretreatStats{}, errors.New("save failed"))
	_, err := s.service.RunOnce(context.Background())
	s.Error(err)
}
