package azopenai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
)

const (
	systemPrompt = "You are an assistant that summarizes text clearly and concisely."
	temperature  = float32(0.3)
)

// Client summarizes text with an Azure OpenAI chat deployment.
type Client struct {
	client       *azopenai.Client
	deploymentID string
}

func NewClient(endpoint string, apiKey string, deploymentID string, options *azopenai.ClientOptions) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(apiKey) == "" || strings.TrimSpace(deploymentID) == "" {
		return nil, errors.New("azure openai endpoint, api key and deployment are required")
	}
	client, err := azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), options)
	if err != nil {
		return nil, fmt.Errorf("create azure openai client: %w", err)
	}
	return &Client{
		client:       client,
		deploymentID: deploymentID,
	}, nil
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := c.client.GetChatCompletions(
		ctx,
		azopenai.ChatCompletionsOptions{
			DeploymentName: to.Ptr(c.deploymentID),
			Messages: []azopenai.ChatRequestMessageClassification{
				&azopenai.ChatRequestSystemMessage{
					Content: azopenai.NewChatRequestSystemMessageContent(systemPrompt),
				},
				&azopenai.ChatRequestUserMessage{
					Content: azopenai.NewChatRequestUserMessageContent("Summarize the following text:\n\n" + text),
				},
			},
			Temperature: to.Ptr(temperature),
		},
		nil,
	)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil && resp.Choices[0].Message.Content != nil {
		return strings.TrimSpace(*resp.Choices[0].Message.Content), nil
	}
	return "", errors.New("no completion received from azure openai")
}
