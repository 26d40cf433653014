package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/sirupsen/logrus"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

const (
	// batchWriteLimit is the DynamoDB cap on items per BatchWriteItem call
	batchWriteLimit       = 25
	unprocessedRetryDelay = 100 * time.Millisecond
)

// DynamoDBStorage implements Storage interface using AWS DynamoDB.
// Each entity lives in its own table named <prefix>_<entity>.
type DynamoDBStorage struct {
	client *dynamodb.DynamoDB
	prefix string
	logger *logrus.Logger
}

type dynamoTable struct {
	name string
	key  string
}

// NewDynamoDBStorage creates a new DynamoDB storage instance
func NewDynamoDBStorage(cfg config.StorageConfig, logger *logrus.Logger) (*DynamoDBStorage, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	storage := &DynamoDBStorage{
		client: dynamodb.New(sess),
		prefix: cfg.TablePrefix,
		logger: logger,
	}

	for _, t := range storage.tables() {
		if err := storage.ensureTable(t); err != nil {
			return nil, fmt.Errorf("failed to ensure table %s exists: %w", t.name, err)
		}
	}

	return storage, nil
}

func (d *DynamoDBStorage) table(entity string) string {
	return d.prefix + "_" + entity
}

func (d *DynamoDBStorage) tables() []dynamoTable {
	return []dynamoTable{
		{name: d.table("party"), key: "short_name"},
		{name: d.table("state"), key: "name"},
		{name: d.table("electoral_district"), key: "code"},
		{name: d.table("member"), key: "id"},
		{name: d.table("import_session"), key: "session_id"},
		{name: d.table("counter"), key: "entity"},
	}
}

// ensureTable creates the DynamoDB table if it doesn't exist
func (d *DynamoDBStorage) ensureTable(t dynamoTable) error {
	_, err := d.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(t.name),
	})
	if err == nil {
		return nil
	}

	_, err = d.client.CreateTable(&dynamodb.CreateTableInput{
		TableName: aws.String(t.name),
		KeySchema: []*dynamodb.KeySchemaElement{
			{AttributeName: aws.String(t.key), KeyType: aws.String("HASH")},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{AttributeName: aws.String(t.key), AttributeType: aws.String("S")},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return d.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
		TableName: aws.String(t.name),
	})
}

// nextID atomically increments the counter for entity and returns the new value
func (d *DynamoDBStorage) nextID(ctx context.Context, entity string) (int64, error) {
	out, err := d.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.table("counter")),
		Key: map[string]*dynamodb.AttributeValue{
			"entity": {S: aws.String(entity)},
		},
		UpdateExpression:          aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{":one": {N: aws.String("1")}},
		ReturnValues:              aws.String(dynamodb.ReturnValueUpdatedNew),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", entity, err)
	}
	return strconv.ParseInt(aws.StringValue(out.Attributes["seq"].N), 10, 64)
}

// putIfAbsent writes item unless an item with the same key already exists
func (d *DynamoDBStorage) putIfAbsent(ctx context.Context, table, key string, item interface{}) error {
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item for %s: %w", table, err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]*string{"#k": aws.String(key)},
	})
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store item in %s: %w", table, err)
	}
	return nil
}

func (d *DynamoDBStorage) scanAll(ctx context.Context, table string, out interface{}) error {
	var items []map[string]*dynamodb.AttributeValue
	err := d.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{TableName: aws.String(table)},
		func(page *dynamodb.ScanOutput, lastPage bool) bool {
			items = append(items, page.Items...)
			return true
		})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", table, err)
	}
	if err := dynamodbattribute.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", table, err)
	}
	return nil
}

// wipeOrder lists the tables WipeAll clears, members before the entities they reference
func (d *DynamoDBStorage) wipeOrder() []dynamoTable {
	return []dynamoTable{
		{name: d.table("member"), key: "id"},
		{name: d.table("party"), key: "short_name"},
		{name: d.table("state"), key: "name"},
		{name: d.table("electoral_district"), key: "code"},
	}
}

// WipeAll deletes every member, then every reference entity
func (d *DynamoDBStorage) WipeAll(ctx context.Context) error {
	for _, t := range d.wipeOrder() {
		if err := d.wipeTable(ctx, t); err != nil {
			return err
		}
	}
	d.logger.Info("wiped existing parliament data")
	return nil
}

func (d *DynamoDBStorage) wipeTable(ctx context.Context, t dynamoTable) error {
	var keys []map[string]*dynamodb.AttributeValue
	err := d.client.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(t.name),
		ProjectionExpression: aws.String("#k"),
		ExpressionAttributeNames: map[string]*string{
			"#k": aws.String(t.key),
		},
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		keys = append(keys, page.Items...)
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", t.name, err)
	}

	for start := 0; start < len(keys); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(keys) {
			end = len(keys)
		}
		requests := make([]*dynamodb.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			requests = append(requests, &dynamodb.WriteRequest{DeleteRequest: &dynamodb.DeleteRequest{Key: k}})
		}
		if err := d.batchWrite(ctx, t.name, requests); err != nil {
			return err
		}
	}
	return nil
}

func (d *DynamoDBStorage) batchWrite(ctx context.Context, table string, requests []*dynamodb.WriteRequest) error {
	pending := map[string][]*dynamodb.WriteRequest{table: requests}
	for len(pending) > 0 {
		out, err := d.client.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("failed to batch write %s: %w", table, err)
		}
		pending = out.UnprocessedItems
		if len(pending) > 0 {
			if err := waitRetry(ctx, unprocessedRetryDelay); err != nil {
				return fmt.Errorf("batch write %s interrupted: %w", table, err)
			}
		}
	}
	return nil
}

// waitRetry sleeps for d unless ctx ends first
func waitRetry(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *DynamoDBStorage) InsertParties(ctx context.Context, parties []models.Party) ([]models.Party, error) {
	existing, err := d.ListParties(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.ShortName] = true
	}

	for _, p := range parties {
		if known[p.ShortName] {
			continue
		}
		if p.ID, err = d.nextID(ctx, "party"); err != nil {
			return nil, err
		}
		if err := d.putIfAbsent(ctx, d.table("party"), "short_name", p); err != nil {
			return nil, err
		}
		known[p.ShortName] = true
	}
	return d.ListParties(ctx)
}

func (d *DynamoDBStorage) InsertStates(ctx context.Context, states []models.State) ([]models.State, error) {
	existing, err := d.ListStates(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, s := range existing {
		known[s.Name] = true
	}

	for _, s := range states {
		if known[s.Name] {
			continue
		}
		if s.ID, err = d.nextID(ctx, "state"); err != nil {
			return nil, err
		}
		if err := d.putIfAbsent(ctx, d.table("state"), "name", s); err != nil {
			return nil, err
		}
		known[s.Name] = true
	}
	return d.ListStates(ctx)
}

func (d *DynamoDBStorage) InsertDistricts(ctx context.Context, districts []models.ElectoralDistrict) ([]models.ElectoralDistrict, error) {
	existing, err := d.ListDistricts(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, ed := range existing {
		known[ed.Code] = true
	}

	for _, ed := range districts {
		if known[ed.Code] {
			continue
		}
		if ed.ID, err = d.nextID(ctx, "electoral_district"); err != nil {
			return nil, err
		}
		if err := d.putIfAbsent(ctx, d.table("electoral_district"), "code", ed); err != nil {
			return nil, err
		}
		known[ed.Code] = true
	}
	return d.ListDistricts(ctx)
}

// InsertMembers stores members one by one so duplicates are skipped, not overwritten
func (d *DynamoDBStorage) InsertMembers(ctx context.Context, members []models.Member) error {
	for _, m := range members {
		if err := d.putIfAbsent(ctx, d.table("member"), "id", m); err != nil {
			return fmt.Errorf("failed to store member %s: %w", m.ID, err)
		}
	}
	return nil
}

func (d *DynamoDBStorage) UpdateMemberDetail(ctx context.Context, memberID string, detail models.MemberDetail) error {
	values, err := memberDetailValues(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal detail for member %s: %w", memberID, err)
	}
	_, err = d.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.table("member")),
		Key:       map[string]*dynamodb.AttributeValue{"id": {S: aws.String(memberID)}},
		UpdateExpression: aws.String("SET birth_date = :bd, birth_place = :bp, occupation = :oc, " +
			"career_history = :ch, education = :ed, political_functions = :pf, social_media = :sm"),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: values,
	})
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
		return fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update member %s: %w", memberID, err)
	}
	return nil
}

// memberDetailValues builds the update values; missing fields become NULL attributes
func memberDetailValues(detail models.MemberDetail) (map[string]*dynamodb.AttributeValue, error) {
	var m models.Member
	applyDetail(&m, detail)

	values := map[string]*dynamodb.AttributeValue{
		":bd": optionalAttribute(m.BirthDate),
		":bp": optionalAttribute(m.BirthPlace),
		":oc": optionalAttribute(m.Occupation),
	}
	lists := map[string]interface{}{
		":ch": m.CareerHistory,
		":ed": m.Education,
		":pf": m.PoliticalFunctions,
		":sm": m.SocialMedia,
	}
	for name, v := range lists {
		av, err := dynamodbattribute.Marshal(v)
		if err != nil {
			return nil, err
		}
		values[name] = av
	}
	return values, nil
}

func optionalAttribute(s *string) *dynamodb.AttributeValue {
	if s == nil {
		return &dynamodb.AttributeValue{NULL: aws.Bool(true)}
	}
	return &dynamodb.AttributeValue{S: s}
}

func (d *DynamoDBStorage) ListMembers(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := d.scanAll(ctx, d.table("member"), &members); err != nil {
		return nil, err
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].LastName != members[j].LastName {
			return members[i].LastName < members[j].LastName
		}
		return members[i].FullName < members[j].FullName
	})
	return members, nil
}

// GetMember retrieves a specific member by ID
func (d *DynamoDBStorage) GetMember(ctx context.Context, id string) (*models.Member, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table("member")),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {S: aws.String(id)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s: %w", id, err)
	}

	if result.Item == nil {
		return nil, nil // Member not found
	}

	var member models.Member
	if err := dynamodbattribute.UnmarshalMap(result.Item, &member); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member: %w", err)
	}
	return &member, nil
}

func (d *DynamoDBStorage) ListParties(ctx context.Context) ([]models.Party, error) {
	var parties []models.Party
	if err := d.scanAll(ctx, d.table("party"), &parties); err != nil {
		return nil, err
	}
	sort.Slice(parties, func(i, j int) bool { return parties[i].ID < parties[j].ID })
	return parties, nil
}

func (d *DynamoDBStorage) ListStates(ctx context.Context) ([]models.State, error) {
	var states []models.State
	if err := d.scanAll(ctx, d.table("state"), &states); err != nil {
		return nil, err
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states, nil
}

func (d *DynamoDBStorage) ListDistricts(ctx context.Context) ([]models.ElectoralDistrict, error) {
	var districts []models.ElectoralDistrict
	if err := d.scanAll(ctx, d.table("electoral_district"), &districts); err != nil {
		return nil, err
	}
	sort.Slice(districts, func(i, j int) bool { return districts[i].ID < districts[j].ID })
	return districts, nil
}

func (d *DynamoDBStorage) CreateSession(ctx context.Context, s models.ImportSession) error {
	item, err := dynamodbattribute.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("failed to marshal import session: %w", err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table("import_session")),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(session_id)"),
	})
	if err != nil {
		return fmt.Errorf("failed to create import session %s: %w", s.SessionID, err)
	}
	return nil
}

func (d *DynamoDBStorage) UpdateSession(ctx context.Context, s models.ImportSession) error {
	item, err := dynamodbattribute.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("failed to marshal import session: %w", err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.table("import_session")),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(session_id)"),
	})
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
		return fmt.Errorf("session %s: %w", s.SessionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update import session %s: %w", s.SessionID, err)
	}
	return nil
}

func (d *DynamoDBStorage) GetSession(ctx context.Context, sessionID string) (*models.ImportSession, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table("import_session")),
		Key: map[string]*dynamodb.AttributeValue{
			"session_id": {S: aws.String(sessionID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get import session %s: %w", sessionID, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var s models.ImportSession
	if err := dynamodbattribute.UnmarshalMap(result.Item, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal import session: %w", err)
	}
	return &s, nil
}

// LatestSession scans the session table; run history is small enough for a full scan
func (d *DynamoDBStorage) LatestSession(ctx context.Context) (*models.ImportSession, error) {
	var sessions []models.ImportSession
	if err := d.scanAll(ctx, d.table("import_session"), &sessions); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartedAt.After(sessions[j].StartedAt) })
	return &sessions[0], nil
}

func (d *DynamoDBStorage) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.table("member")),
	})
	return err
}

// Close closes the DynamoDB connection
func (d *DynamoDBStorage) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}
