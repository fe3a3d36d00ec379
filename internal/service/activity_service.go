package service

import (
	"context"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/pkg/logger"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type ActivityService struct {
	ActivityRepo *repository.ActivityRepository
	Dispatcher   EventDispatcher
}

func NewActivityService(activityRepo *repository.ActivityRepository, dispatcher EventDispatcher) *ActivityService {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	return &ActivityService{ActivityRepo: activityRepo, Dispatcher: dispatcher}
}

// LogActivityRequest 客户端上报的行为
type LogActivityRequest struct {
	ActivityType model.ActivityType     `json:"activityType" binding:"required"`
	ObjectType   string                 `json:"objectType"`
	ObjectID     *uint                  `json:"objectId"`
	Data         map[string]interface{} `json:"data"`
}

// Log 只写行为日志，不触发奖励
func (s *ActivityService) Log(ctx context.Context, userID uint, t model.ActivityType, objectType string, objectID *uint, data map[string]interface{}) (*model.UserActivity, error) {
	a := &model.UserActivity{
		UserID:       userID,
		ActivityType: t,
		ObjectType:   objectType,
		ObjectID:     objectID,
		CreatedAt:    time.Now(),
	}
	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrap(err, "marshal activity data")
		}
		a.Data = datatypes.JSON(raw)
	}
	if err := s.ActivityRepo.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "insert activity")
	}
	return a, nil
}

// logQuietly 主流程附带的行为日志，失败只记录
func (s *ActivityService) logQuietly(ctx context.Context, userID uint, t model.ActivityType, objectType string, objectID uint, data map[string]interface{}) {
	if _, err := s.Log(ctx, userID, t, objectType, &objectID, data); err != nil {
		logger.Ctx(ctx).Warn("Failed to log activity", zap.Error(err), zap.Uint("userId", userID), zap.String("type", string(t)))
	}
}

// Record 记录一次行为并触发 activity 事件
func (s *ActivityService) Record(ctx context.Context, userID uint, req LogActivityRequest) (*model.UserActivity, error) {
	a, err := s.Log(ctx, userID, req.ActivityType, req.ObjectType, req.ObjectID, req.Data)
	if err != nil {
		return nil, err
	}
	s.Dispatcher.Dispatch(ctx, Event{Kind: EventActivity, UserID: userID, At: a.CreatedAt})
	return a, nil
}

func (s *ActivityService) Count(ctx context.Context, userID uint) (int64, error) {
	return s.ActivityRepo.CountByUser(ctx, userID)
}

func (s *ActivityService) Recent(ctx context.Context, userID uint, limit int) ([]model.UserActivity, error) {
	return s.ActivityRepo.ListByUser(ctx, userID, limit)
}
