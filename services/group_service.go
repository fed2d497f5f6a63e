package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ridepool_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// GroupService performs the authoritative reads and writes for ride groups.
// Its methods are the building blocks callers wrap into remote actions for
// the reconciliation engine; only the sweeper bypasses it for deletion.
type GroupService struct {
	Dynamo *DynamoService
	Table  string
}

func groupKey(groupID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"groupId": &types.AttributeValueMemberS{Value: groupID},
	}
}

// CreateGroup stores a new group
func (s *GroupService) CreateGroup(ctx context.Context, group models.Group) error {
	if group.GroupID == "" {
		return errors.New("group id is required")
	}
	log.Printf("Creating group %s (destination: %s)", group.GroupID, group.DestinationName)
	return s.Dynamo.PutItem(ctx, s.Table, group)
}

// GetGroup fetches a group by id
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	item, err := s.Dynamo.GetItem(ctx, s.Table, groupKey(groupID))
	if err != nil {
		return nil, err
	}

	var group models.Group
	if err := attributevalue.UnmarshalMap(item, &group); err != nil {
		return nil, fmt.Errorf("failed to unmarshal group '%s': %w", groupID, err)
	}
	return &group, nil
}

// ListGroups scans every stored group
func (s *GroupService) ListGroups(ctx context.Context) ([]models.Group, error) {
	items, err := s.Dynamo.ScanItems(ctx, s.Table)
	if err != nil {
		return nil, err
	}

	var groups []models.Group
	if err := attributevalue.UnmarshalListOfMaps(items, &groups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal groups: %w", err)
	}
	return groups, nil
}

// AddMember adds a user to a group's member maps and bumps the cached count.
// The conditional write rejects full groups and duplicate joins so the count
// never drifts from the member map.
func (s *GroupService) AddMember(ctx context.Context, groupID, userID, userName string) error {
	joinedAt, err := attributevalue.Marshal(models.MemberInfo{Name: userName, JoinedAt: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("failed to marshal member info: %w", err)
	}

	condition := "attribute_exists(groupId) AND attribute_not_exists(members.#uid) AND memberCount < maxMembers"
	_, err = s.Dynamo.UpdateItem(ctx, s.Table,
		"SET members.#uid = :present, memberDetails.#uid = :info ADD memberCount :one",
		groupKey(groupID),
		map[string]types.AttributeValue{
			":present": &types.AttributeValueMemberBOOL{Value: true},
			":info":    joinedAt,
			":one":     &types.AttributeValueMemberN{Value: "1"},
		},
		map[string]string{"#uid": userID},
		&condition,
	)
	if err != nil {
		return fmt.Errorf("failed to join group '%s': %w", groupID, err)
	}
	return nil
}

// RemoveMember removes a user from a group's member maps and decrements the
// cached count. Rejected if the user is not a member.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID string) error {
	condition := "attribute_exists(groupId) AND attribute_exists(members.#uid)"
	_, err := s.Dynamo.UpdateItem(ctx, s.Table,
		"REMOVE members.#uid, memberDetails.#uid ADD memberCount :minusOne",
		groupKey(groupID),
		map[string]types.AttributeValue{
			":minusOne": &types.AttributeValueMemberN{Value: "-1"},
		},
		map[string]string{"#uid": userID},
		&condition,
	)
	if err != nil {
		return fmt.Errorf("failed to leave group '%s': %w", groupID, err)
	}
	return nil
}

// UpdateGroup replaces a stored group wholesale. The write is conditional on
// the group still existing so an update cannot resurrect a swept group.
func (s *GroupService) UpdateGroup(ctx context.Context, group models.Group) error {
	marshaled, err := attributevalue.Marshal(group)
	if err != nil {
		return fmt.Errorf("failed to marshal group '%s': %w", group.GroupID, err)
	}
	groupAttr, ok := marshaled.(*types.AttributeValueMemberM)
	if !ok {
		return errors.New("group did not marshal to a map attribute")
	}

	condition := "attribute_exists(groupId)"
	setParts := ""
	values := map[string]types.AttributeValue{}
	names := map[string]string{}
	i := 0
	for field, value := range groupAttr.Value {
		if field == "groupId" {
			continue
		}
		placeholder := fmt.Sprintf(":v%d", i)
		name := fmt.Sprintf("#f%d", i)
		if setParts != "" {
			setParts += ", "
		}
		setParts += fmt.Sprintf("%s = %s", name, placeholder)
		values[placeholder] = value
		names[name] = field
		i++
	}

	_, err = s.Dynamo.UpdateItem(ctx, s.Table, "SET "+setParts, groupKey(group.GroupID), values, names, &condition)
	if err != nil {
		return fmt.Errorf("failed to update group '%s': %w", group.GroupID, err)
	}
	return nil
}

// DeleteGroup removes a group. Only the creator may delete; the sweeper goes
// through BatchDeleteItems instead and is not subject to this check.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID, userID string) error {
	group, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatorID != userID {
		return errors.New("only the creator can delete a group")
	}
	log.Printf("Deleting group %s", groupID)
	return s.Dynamo.DeleteItem(ctx, s.Table, groupKey(groupID))
}
