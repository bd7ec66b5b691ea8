package message

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receivedAt = time.Date(2025, 3, 4, 1, 2, 3, 0, time.UTC)

func fullPayloadJSON(t *testing.T) map[string]any {
	t.Helper()
	return map[string]any{
		"monitorId":         "M1",
		"searchId":          "S1",
		"resultId":          "R1",
		"resultScore":       "9.5",
		"searchName":        "Pump vibration",
		"searchType":        "VALUE_BASED",
		"searchCreator":     "alice",
		"searchDescription": "vibration above threshold",
		"webhookCallEvent":  "RESULT_FOUND",
		"resultStart":       "2025-03-04T00:00:00Z",
		"resultEnd":         "2025-03-04T00:30:00Z",
		"webhookCallTime":   "2025-03-04T00:31:00Z",
		"resultUrl":         "https://trendminer.example/results/R1",
	}
}

func TestFormatRendersAllFieldsInOrder(t *testing.T) {
	fields := fullPayloadJSON(t)
	encoded, err := json.Marshal(fields)
	require.NoError(t, err)

	p := DecodePayload(json.RawMessage(encoded))
	out := Format(p, receivedAt)

	expected := strings.Join([]string{
		"TrendMiner 监控告警",
		"监控ID: M1",
		"搜索ID: S1",
		"结果ID: R1",
		"结果分数: 9.5",
		"搜索名称: Pump vibration",
		"搜索类型: VALUE_BASED",
		"创建人: alice",
		"搜索描述: vibration above threshold",
		"事件类型: RESULT_FOUND",
		"结果开始时间: 2025-03-04T00:00:00Z",
		"结果结束时间: 2025-03-04T00:30:00Z",
		"触发时间: 2025-03-04T00:31:00Z",
		"查看详情: https://trendminer.example/results/R1",
		"本地接收时间：2025/03/04 09:02:03",
	}, "\n")
	assert.Equal(t, expected, out)
}

func TestFormatEmptyPayloadUsesPlaceholders(t *testing.T) {
	out := Format(DecodePayload(json.RawMessage(`{}`)), receivedAt)

	rows := strings.Split(out, "\n")
	require.Len(t, rows, 15)
	assert.Equal(t, Title, rows[0])
	for _, row := range rows[1:13] {
		assert.True(t, strings.HasSuffix(row, ": "+Unknown), "row %q should use the unknown placeholder", row)
	}
	assert.Equal(t, "查看详情: "+NoLink, rows[13])
	assert.Equal(t, "本地接收时间：2025/03/04 09:02:03", rows[14])
}

func TestDecodePayloadFromJSONString(t *testing.T) {
	raw := json.RawMessage(`"{\"monitorId\":\"M1\",\"resultScore\":\"9.5\"}"`)
	p := DecodePayload(raw)

	assert.Equal(t, "M1", p.MonitorID)
	assert.Equal(t, "9.5", p.ResultScore)
	assert.Empty(t, p.SearchID)
}

func TestDecodePayloadFromObject(t *testing.T) {
	p := DecodePayload(json.RawMessage(`{"monitorId":"M2","resultUrl":"https://x"}`))

	assert.Equal(t, "M2", p.MonitorID)
	assert.Equal(t, "https://x", p.ResultURL)
}

func TestDecodePayloadNeverFails(t *testing.T) {
	inputs := []string{
		``,
		`null`,
		`"not json at all"`,
		`"{broken"`,
		`"\"just a string\""`,
		`"null"`,
		`42`,
		`[1,2,3]`,
		`{"monitorId":`,
		`true`,
		`{"monitorId":null,"searchId":null}`,
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			var p Payload
			require.NotPanics(t, func() { p = DecodePayload(json.RawMessage(input)) })
			assert.True(t, p.IsEmpty())

			out := Format(p, receivedAt)
			assert.NotEmpty(t, out)
			assert.Contains(t, out, "监控ID: "+Unknown)
			assert.Contains(t, out, "查看详情: "+NoLink)
		})
	}
}

func TestDecodePayloadStringifiesValues(t *testing.T) {
	p := DecodePayload(json.RawMessage(`{
		"monitorId": 1234,
		"resultScore": 9.50,
		"searchId": 0,
		"resultId": "",
		"searchName": false,
		"searchType": true,
		"searchDescription": {"a": 1}
	}`))

	assert.Equal(t, "1234", p.MonitorID)
	assert.Equal(t, "9.5", p.ResultScore)
	assert.Empty(t, p.SearchID)
	assert.Empty(t, p.ResultID)
	assert.Empty(t, p.SearchName)
	assert.Equal(t, "true", p.SearchType)
	assert.Equal(t, `{"a":1}`, p.SearchDescription)
}

func TestDecodePayloadShortestNumberForm(t *testing.T) {
	cases := map[string]string{
		`9.50`:     "9.5",
		`1e2`:      "100",
		`-0.25`:    "-0.25",
		`12345678`: "12345678",
		`1e21`:     "1e+21",
		`1.5e-7`:   "1.5e-7",
	}

	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			p := DecodePayload(json.RawMessage(`{"resultScore":` + raw + `}`))
			assert.Equal(t, want, p.ResultScore)
		})
	}
}

func TestFormatRendersNumericScore(t *testing.T) {
	p := DecodePayload(json.RawMessage(`{"monitorId":"M1","resultScore":9.50}`))
	out := Format(p, time.Date(2025, 6, 1, 4, 5, 6, 0, time.UTC))
	assert.Contains(t, out, "结果分数: 9.5\n")
}

func TestFormatReceivedAtUsesShanghaiTime(t *testing.T) {
	ts := time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025/01/01 04:00:00", FormatReceivedAt(ts))
}

func TestWithWarning(t *testing.T) {
	assert.Equal(t, "请注意有问题\nbody", WithWarning("body"))
}
