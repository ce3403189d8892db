package messaging

import (
	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
)

// KernelStatusContent is the content of an iopub "status" message.
type KernelStatusContent struct {
	ExecutionState string `json:"execution_state" mapstructure:"execution_state"`
}

// ExecuteRequestContent is the content of an "execute_request".
type ExecuteRequestContent struct {
	Code            string                 `json:"code" mapstructure:"code"`
	Silent          bool                   `json:"silent" mapstructure:"silent"`
	StoreHistory    bool                   `json:"store_history" mapstructure:"store_history"`
	UserExpressions map[string]interface{} `json:"user_expressions" mapstructure:"user_expressions"`
	AllowStdin      bool                   `json:"allow_stdin" mapstructure:"allow_stdin"`
	StopOnError     bool                   `json:"stop_on_error" mapstructure:"stop_on_error"`
}

// ExecuteReplyContent is the content of an "execute_reply".
type ExecuteReplyContent struct {
	Status          string                 `json:"status" mapstructure:"status"`
	ExecutionCount  int                    `json:"execution_count" mapstructure:"execution_count"`
	UserExpressions map[string]interface{} `json:"user_expressions" mapstructure:"user_expressions"`
	ErrName         string                 `json:"ename,omitempty" mapstructure:"ename"`
	ErrValue        string                 `json:"evalue,omitempty" mapstructure:"evalue"`
	Traceback       []string               `json:"traceback,omitempty" mapstructure:"traceback"`
}

// ExecuteResultContent is the content of an iopub "execute_result" or "display_data" message.
type ExecuteResultContent struct {
	ExecutionCount int                    `json:"execution_count,omitempty" mapstructure:"execution_count"`
	Data           map[string]interface{} `json:"data" mapstructure:"data"`
	Metadata       map[string]interface{} `json:"metadata" mapstructure:"metadata"`
}

// StreamContent is the content of an iopub "stream" message.
type StreamContent struct {
	Name string `json:"name" mapstructure:"name"`
	Text string `json:"text" mapstructure:"text"`
}

// InspectRequestContent is the content of an "inspect_request".
type InspectRequestContent struct {
	Code        string `json:"code" mapstructure:"code"`
	CursorPos   int    `json:"cursor_pos" mapstructure:"cursor_pos"`
	DetailLevel int    `json:"detail_level" mapstructure:"detail_level"`
}

// CompleteRequestContent is the content of a "complete_request".
type CompleteRequestContent struct {
	Code      string `json:"code" mapstructure:"code"`
	CursorPos int    `json:"cursor_pos" mapstructure:"cursor_pos"`
}

// CompleteReplyContent is the content of a "complete_reply".
type CompleteReplyContent struct {
	Status      string                 `json:"status" mapstructure:"status"`
	Matches     []string               `json:"matches" mapstructure:"matches"`
	CursorStart int                    `json:"cursor_start" mapstructure:"cursor_start"`
	CursorEnd   int                    `json:"cursor_end" mapstructure:"cursor_end"`
	Metadata    map[string]interface{} `json:"metadata" mapstructure:"metadata"`
}

// IsCompleteRequestContent is the content of an "is_complete_request".
type IsCompleteRequestContent struct {
	Code string `json:"code" mapstructure:"code"`
}

// HistoryRequestContent is the content of a "history_request".
type HistoryRequestContent struct {
	Output         bool   `json:"output" mapstructure:"output"`
	Raw            bool   `json:"raw" mapstructure:"raw"`
	HistAccessType string `json:"hist_access_type" mapstructure:"hist_access_type"`
	Session        int    `json:"session,omitempty" mapstructure:"session"`
	Start          int    `json:"start,omitempty" mapstructure:"start"`
	Stop           int    `json:"stop,omitempty" mapstructure:"stop"`
	N              int    `json:"n,omitempty" mapstructure:"n"`
	Pattern        string `json:"pattern,omitempty" mapstructure:"pattern"`
	Unique         bool   `json:"unique,omitempty" mapstructure:"unique"`
}

// CommInfoRequestContent is the content of a "comm_info_request".
type CommInfoRequestContent struct {
	TargetName string `json:"target_name,omitempty" mapstructure:"target_name"`
}

// InputRequestContent is the content of a stdin "input_request".
type InputRequestContent struct {
	Prompt   string `json:"prompt" mapstructure:"prompt"`
	Password bool   `json:"password" mapstructure:"password"`
}

// InputReplyContent is the content of a stdin "input_reply".
type InputReplyContent struct {
	Value string `json:"value" mapstructure:"value"`
}

// LanguageInfo is part of the "kernel_info_reply".
type LanguageInfo struct {
	Name           string `json:"name" mapstructure:"name"`
	Version        string `json:"version" mapstructure:"version"`
	Mimetype       string `json:"mimetype" mapstructure:"mimetype"`
	FileExtension  string `json:"file_extension" mapstructure:"file_extension"`
	PygmentsLexer  string `json:"pygments_lexer" mapstructure:"pygments_lexer"`
	NbconvertExprt string `json:"nbconvert_exporter" mapstructure:"nbconvert_exporter"`
}

// KernelInfoReplyContent is the content of a "kernel_info_reply".
type KernelInfoReplyContent struct {
	Status                string       `json:"status" mapstructure:"status"`
	ProtocolVersion       string       `json:"protocol_version" mapstructure:"protocol_version"`
	Implementation        string       `json:"implementation" mapstructure:"implementation"`
	ImplementationVersion string       `json:"implementation_version" mapstructure:"implementation_version"`
	LanguageInfo          LanguageInfo `json:"language_info" mapstructure:"language_info"`
	Banner                string       `json:"banner" mapstructure:"banner"`
	Debugger              bool         `json:"debugger" mapstructure:"debugger"`
}

// CommOpenContent is the content of a "comm_open" message.
type CommOpenContent struct {
	CommId       string                 `json:"comm_id" mapstructure:"comm_id"`
	TargetName   string                 `json:"target_name" mapstructure:"target_name"`
	TargetModule string                 `json:"target_module,omitempty" mapstructure:"target_module"`
	Data         map[string]interface{} `json:"data" mapstructure:"data"`
}

// CommMsgContent is the content of a "comm_msg" message.
type CommMsgContent struct {
	CommId string                 `json:"comm_id" mapstructure:"comm_id"`
	Data   map[string]interface{} `json:"data" mapstructure:"data"`
}

// CommCloseContent is the content of a "comm_close" message.
type CommCloseContent struct {
	CommId string                 `json:"comm_id" mapstructure:"comm_id"`
	Data   map[string]interface{} `json:"data" mapstructure:"data"`
}

// ToContent converts one of the typed content structs (or any JSON-encodable value) into the generic
// content map carried by Message.
func ToContent(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	content := make(map[string]interface{})
	if err = json.Unmarshal(encoded, &content); err != nil {
		return nil, err
	}

	return content, nil
}

func decodeMap(in map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(in)
}
