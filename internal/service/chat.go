package service

import (
	"errors"
	"sort"
	"strings"
	"time"

	"shopadmin/internal/metrics"
	"shopadmin/internal/models"
	"shopadmin/internal/ws"

	"gorm.io/gorm"
)

// snippetLimit 会话列表里最后一条消息的截断长度。
const snippetLimit = 50

// ChatService 封装私聊消息的持久化、会话视图计算和实时推送。
type ChatService struct {
	db  *gorm.DB
	hub *ws.Hub
}

func NewChatService(db *gorm.DB, hub *ws.Hub) *ChatService {
	return &ChatService{db: db, hub: hub}
}

// MessageDTO 是对外输出的消息数据。
type MessageDTO struct {
	ID         uint      `json:"id"`
	SenderID   uint      `json:"senderId"`
	ReceiverID uint      `json:"receiverId"`
	Body       string    `json:"body"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toMessageDTO(m models.ChatMessage) MessageDTO {
	return MessageDTO{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Body:       m.Body,
		IsRead:     m.Read,
		CreatedAt:  m.CreatedAt,
	}
}

// ConversationSummary 是按会话伙伴聚合出来的视图，每次请求现算，不做缓存。
type ConversationSummary struct {
	PartnerID     uint      `json:"partnerId"`
	PartnerName   string    `json:"partnerName"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int       `json:"unreadCount"`
}

// Send 校验接收者和消息体后落库，并把新消息推给双方的在线连接。
// 推送失败不影响返回值，消息始终可以通过历史接口取回。
func (s *ChatService) Send(senderID, receiverID uint, body string) (*MessageDTO, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", receiverID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrUserNotFound
	}
	msg := models.ChatMessage{SenderID: senderID, ReceiverID: receiverID, Body: body}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	metrics.ChatMessagesTotal.Inc()
	dto := toMessageDTO(msg)
	s.hub.SendToUser(senderID, ws.EventReceiveMessage, dto)
	if receiverID != senderID {
		s.hub.SendToUser(receiverID, ws.EventReceiveMessage, dto)
	}
	return &dto, nil
}

// Conversations 扫出与当前用户有过往来的全部伙伴，每个伙伴取最近一条消息
// 和未读数，按最近消息时间倒序返回。
func (s *ChatService) Conversations(userID uint) ([]ConversationSummary, error) {
	var msgs []models.ChatMessage
	err := s.db.Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at asc, id asc").Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	summaries := buildSummaries(userID, msgs)

	partnerIDs := make([]uint, 0, len(summaries))
	for _, sum := range summaries {
		partnerIDs = append(partnerIDs, sum.PartnerID)
	}
	names, err := s.resolveUsernames(partnerIDs)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		summaries[i].PartnerName = names[summaries[i].PartnerID]
	}
	return summaries, nil
}

// buildSummaries 把按时间升序的消息流折叠成会话摘要，最近会话排最前。
func buildSummaries(userID uint, msgs []models.ChatMessage) []ConversationSummary {
	byPartner := make(map[uint]*ConversationSummary)
	for _, m := range msgs {
		partner := m.SenderID
		if partner == userID {
			partner = m.ReceiverID
		}
		sum := byPartner[partner]
		if sum == nil {
			sum = &ConversationSummary{PartnerID: partner}
			byPartner[partner] = sum
		}
		// 消息按时间升序，最后一次赋值即最近一条。
		sum.LastMessage = Snippet(m.Body)
		sum.LastMessageAt = m.CreatedAt
		if m.ReceiverID == userID && !m.Read {
			sum.UnreadCount++
		}
	}
	out := make([]ConversationSummary, 0, len(byPartner))
	for _, sum := range byPartner {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// Snippet 把消息体截断成会话列表用的摘要，超过 50 个字符补省略号。
func Snippet(body string) string {
	r := []rune(body)
	if len(r) <= snippetLimit {
		return body
	}
	return string(r[:snippetLimit]) + "..."
}

// History 分页返回与指定用户的消息记录，页内按时间升序。发给当前用户且
// 未读的消息在返回前批量置为已读，范围只限本页，避免并发翻页误标。
func (s *ChatService) History(userID, otherID uint, page, pageSize int) ([]MessageDTO, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Where("id = ?", otherID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrUserNotFound
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	var msgs []models.ChatMessage
	err := s.db.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		userID, otherID, otherID, userID).
		Order("created_at asc, id asc").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	unreadIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if m.ReceiverID == userID && !m.Read {
			unreadIDs = append(unreadIDs, m.ID)
		}
	}
	if len(unreadIDs) > 0 {
		if err := s.db.Model(&models.ChatMessage{}).Where("id IN ?", unreadIDs).Update("read", true).Error; err != nil {
			return nil, err
		}
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		if m.ReceiverID == userID {
			m.Read = true
		}
		out = append(out, toMessageDTO(m))
	}
	return out, nil
}

// Edit 只允许原发送者改写消息体，改写后重置未读，接收方需要重新确认。
func (s *ChatService) Edit(requesterID, messageID uint, newBody string) (*MessageDTO, error) {
	newBody = strings.TrimSpace(newBody)
	if newBody == "" {
		return nil, ErrEmptyBody
	}
	var msg models.ChatMessage
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, ErrForbidden
	}
	updates := map[string]interface{}{"body": newBody, "read": false}
	if err := s.db.Model(&msg).Updates(updates).Error; err != nil {
		return nil, err
	}
	msg.Body = newBody
	msg.Read = false
	dto := toMessageDTO(msg)
	s.hub.SendToUser(msg.SenderID, ws.EventMessageEdited, dto)
	if msg.ReceiverID != msg.SenderID {
		s.hub.SendToUser(msg.ReceiverID, ws.EventMessageEdited, dto)
	}
	return &dto, nil
}

// Delete 只允许原发送者硬删消息，随后只推送消息 id。
func (s *ChatService) Delete(requesterID, messageID uint) error {
	var msg models.ChatMessage
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.SenderID != requesterID {
		return ErrForbidden
	}
	if err := s.db.Delete(&msg).Error; err != nil {
		return err
	}
	payload := map[string]uint{"id": msg.ID}
	s.hub.SendToUser(msg.SenderID, ws.EventMessageDeleted, payload)
	if msg.ReceiverID != msg.SenderID {
		s.hub.SendToUser(msg.ReceiverID, ws.EventMessageDeleted, payload)
	}
	return nil
}

// resolveUsernames 批量获取伙伴用户名。
func (s *ChatService) resolveUsernames(userIDs []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	var users []models.User
	if err := s.db.Select("id", "username").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}
