// Package awstest provides small in-memory fakes for the AWS client
// interfaces. The DynamoDB fake understands only the expression subset the
// stores actually emit; it is intentionally minimal and not production-grade.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// table holds items keyed by the concatenated primary key.
type table struct {
	partitionKey string
	sortKey      string // empty when the table has no sort key
	items        map[string]map[string]types.AttributeValue
}

// DB is an in-memory DynamoDB fake implementing aws.DynamoDBAPI.
type DB struct {
	mu     sync.Mutex
	tables map[string]*table

	// FailNext, when set, is returned by the next write call and cleared.
	FailNext error
}

// NewDB returns an empty fake with no tables.
func NewDB() *DB {
	return &DB{tables: map[string]*table{}}
}

// AddTable registers a table. sortKey may be empty.
func (d *DB) AddTable(name, partitionKey, sortKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[name] = &table{
		partitionKey: partitionKey,
		sortKey:      sortKey,
		items:        map[string]map[string]types.AttributeValue{},
	}
}

// Seed inserts an item directly, bypassing condition checks.
func (d *DB) Seed(tableName string, item map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.tables[tableName]
	t.items[t.keyOf(item)] = item
}

// Items returns all items in a table, for assertions.
func (d *DB) Items(tableName string) []map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.tables[tableName]
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, it)
	}
	return out
}

func (t *table) keyOf(item map[string]types.AttributeValue) string {
	k := attrString(item[t.partitionKey])
	if t.sortKey != "" {
		k += "|" + attrString(item[t.sortKey])
	}
	return k
}

func attrString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return ""
	}
}

func (d *DB) tableFor(name *string) (*table, error) {
	if name == nil {
		return nil, errors.New("missing table name")
	}
	t, ok := d.tables[*name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", *name)
	}
	return t, nil
}

// PutItem implements conditional and unconditional puts.
func (d *DB) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	t, err := d.tableFor(params.TableName)
	if err != nil {
		return nil, err
	}
	key := t.keyOf(params.Item)
	if params.ConditionExpression != nil {
		if !evalCondition(*params.ConditionExpression, t.items[key], params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	t.items[key] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (d *DB) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.tableFor(params.TableName)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[t.keyOf(params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (d *DB) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	t, err := d.tableFor(params.TableName)
	if err != nil {
		return nil, err
	}
	delete(t.items, t.keyOf(params.Key))
	return &dyn.DeleteItemOutput{}, nil
}

// Query ignores IndexName and filters on the single equality in the key
// condition, which matches how the stores use GSI point queries.
func (d *DB) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.tableFor(params.TableName)
	if err != nil {
		return nil, err
	}
	attr, val, err := parseEquality(*params.KeyConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	var items []map[string]types.AttributeValue
	for _, it := range t.items {
		if sameAttr(it[attr], val) {
			items = append(items, it)
		}
	}
	return &dyn.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (d *DB) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, err := d.tableFor(params.TableName)
	if err != nil {
		return nil, err
	}
	var items []map[string]types.AttributeValue
	for _, it := range t.items {
		if params.FilterExpression != nil {
			attr, val, perr := parseEquality(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
			if perr != nil {
				return nil, perr
			}
			if !sameAttr(it[attr], val) {
				continue
			}
		}
		items = append(items, it)
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

// UpdateItem supports the SET/ADD expression subset emitted by the stores:
// plain assignment, if_not_exists, if_not_exists(...)+:inc, list_append, and
// numeric ADD terms. Missing items are created (upsert), as in DynamoDB.
func (d *DB) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	t, err := d.tableFor(params.TableName)
	if err != nil {
		return nil, err
	}
	key := t.keyOf(params.Key)
	item, exists := t.items[key]

	if params.ConditionExpression != nil {
		if !evalCondition(*params.ConditionExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	if !exists {
		item = map[string]types.AttributeValue{}
		for k, v := range params.Key {
			item[k] = v
		}
	}

	if params.UpdateExpression != nil {
		if err := applyUpdate(item, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	t.items[key] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

// TransactWriteItems supports Put entries only. All conditions are checked
// before any write is applied; a failed condition cancels the transaction.
func (d *DB) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeFailure(); err != nil {
		return nil, err
	}
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			return nil, errors.New("fake supports Put transact items only")
		}
		t, err := d.tableFor(p.TableName)
		if err != nil {
			return nil, err
		}
		if p.ConditionExpression != nil {
			existing := t.items[t.keyOf(p.Item)]
			if !evalCondition(*p.ConditionExpression, existing, p.ExpressionAttributeNames, p.ExpressionAttributeValues) {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}
	for _, it := range params.TransactItems {
		t, _ := d.tableFor(it.Put.TableName)
		t.items[t.keyOf(it.Put.Item)] = it.Put.Item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *DB) takeFailure() error {
	if d.FailNext != nil {
		err := d.FailNext
		d.FailNext = nil
		return err
	}
	return nil
}

// ---- expression helpers ----

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		return names[name]
	}
	return name
}

func parseEquality(expr string, names map[string]string, values map[string]types.AttributeValue) (string, types.AttributeValue, error) {
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("unsupported expression %q", expr)
	}
	attr := resolveName(strings.TrimSpace(parts[0]), names)
	ref := strings.TrimSpace(parts[1])
	val, ok := values[ref]
	if !ok {
		return "", nil, fmt.Errorf("missing value %q", ref)
	}
	return attr, val, nil
}

func sameAttr(a, b types.AttributeValue) bool {
	if a == nil || b == nil {
		return false
	}
	return attrString(a) == attrString(b)
}

func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	expr = strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(expr, "attribute_not_exists(") && strings.HasSuffix(expr, ")"):
		attr := resolveName(expr[len("attribute_not_exists("):len(expr)-1], names)
		if item == nil {
			return true
		}
		_, has := item[attr]
		return !has
	case strings.HasPrefix(expr, "attribute_exists(") && strings.HasSuffix(expr, ")"):
		attr := resolveName(expr[len("attribute_exists("):len(expr)-1], names)
		if item == nil {
			return false
		}
		_, has := item[attr]
		return has
	default:
		attr, val, err := parseEquality(expr, names, values)
		if err != nil || item == nil {
			return false
		}
		return sameAttr(item[attr], val)
	}
}

// splitTopLevel splits on commas outside parentheses.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func applyUpdate(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	setPart, addPart := expr, ""
	if idx := strings.Index(expr, " ADD "); idx >= 0 {
		setPart, addPart = expr[:idx], expr[idx+len(" ADD "):]
	}
	setPart = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(setPart), "SET"))

	if setPart != "" {
		for _, clause := range splitTopLevel(setPart) {
			if err := applySet(item, strings.TrimSpace(clause), names, values); err != nil {
				return err
			}
		}
	}
	for _, clause := range splitTopLevel(addPart) {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		fields := strings.Fields(clause)
		if len(fields) != 2 {
			return fmt.Errorf("unsupported ADD clause %q", clause)
		}
		attr := resolveName(fields[0], names)
		delta, err := numValue(values[fields[1]])
		if err != nil {
			return err
		}
		current := int64(0)
		if cur, ok := item[attr]; ok {
			if current, err = numValue(cur); err != nil {
				return err
			}
		}
		item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(current+delta, 10)}
	}
	return nil
}

func applySet(item map[string]types.AttributeValue, clause string, names map[string]string, values map[string]types.AttributeValue) error {
	parts := strings.SplitN(clause, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("unsupported SET clause %q", clause)
	}
	attr := resolveName(strings.TrimSpace(parts[0]), names)
	rhs := strings.TrimSpace(parts[1])

	switch {
	case strings.HasPrefix(rhs, ":"):
		item[attr] = values[rhs]

	case strings.HasPrefix(rhs, "list_append("):
		inner := rhs[len("list_append(") : len(rhs)-1]
		args := splitTopLevel(inner)
		if len(args) != 2 {
			return fmt.Errorf("unsupported list_append %q", rhs)
		}
		base := resolveListArg(item, strings.TrimSpace(args[0]), names, values)
		tail := resolveListArg(item, strings.TrimSpace(args[1]), names, values)
		item[attr] = &types.AttributeValueMemberL{Value: append(append([]types.AttributeValue{}, base...), tail...)}

	case strings.HasPrefix(rhs, "if_not_exists("):
		// forms: if_not_exists(a, :v) and if_not_exists(a, :zero) + :inc
		var incRef string
		body := rhs
		if idx := strings.Index(rhs, ") + "); idx >= 0 {
			body = rhs[:idx+1]
			incRef = strings.TrimSpace(rhs[idx+len(") + "):])
		}
		args := splitTopLevel(body[len("if_not_exists(") : len(body)-1])
		if len(args) != 2 {
			return fmt.Errorf("unsupported if_not_exists %q", rhs)
		}
		src := resolveName(strings.TrimSpace(args[0]), names)
		cur, ok := item[src]
		if !ok {
			cur = values[strings.TrimSpace(args[1])]
		}
		if incRef == "" {
			item[attr] = cur
			return nil
		}
		base, err := numValue(cur)
		if err != nil {
			return err
		}
		inc, err := numValue(values[incRef])
		if err != nil {
			return err
		}
		item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(base+inc, 10)}

	default:
		return fmt.Errorf("unsupported SET rhs %q", rhs)
	}
	return nil
}

func resolveListArg(item map[string]types.AttributeValue, arg string, names map[string]string, values map[string]types.AttributeValue) []types.AttributeValue {
	var av types.AttributeValue
	if strings.HasPrefix(arg, "if_not_exists(") {
		args := splitTopLevel(arg[len("if_not_exists(") : len(arg)-1])
		src := resolveName(strings.TrimSpace(args[0]), names)
		if cur, ok := item[src]; ok {
			av = cur
		} else {
			av = values[strings.TrimSpace(args[1])]
		}
	} else if strings.HasPrefix(arg, ":") {
		av = values[arg]
	} else {
		av = item[resolveName(arg, names)]
	}
	if l, ok := av.(*types.AttributeValueMemberL); ok {
		return l.Value
	}
	return nil
}

func numValue(av types.AttributeValue) (int64, error) {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("expected numeric attribute, got %T", av)
	}
	return strconv.ParseInt(n.Value, 10, 64)
}
