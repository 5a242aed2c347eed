package servicebus

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
)

// NewClientFromConnectionString opens an AMQP client from a connection
// string, the path taken both for SERVICEBUS_CONNECTION_STRING auth and for
// connection strings retrieved through the management client's listKeys
// call.
func NewClientFromConnectionString(connectionString string) (*azservicebus.Client, error) {
	if connectionString == "" {
		return nil, &quettyerr.ConfigurationError{Reason: "connection string is required but empty"}
	}
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, &quettyerr.ConnectionFailed{Reason: fmt.Sprintf("failed to create service bus client: %v", err)}
	}
	return client, nil
}

// NewClientWithCredential opens an AMQP client against
// <namespace>.servicebus.windows.net using an Azure AD token credential
// (device-code or client-credentials, both satisfy azcore.TokenCredential).
func NewClientWithCredential(namespace string, credential azcore.TokenCredential) (*azservicebus.Client, error) {
	if namespace == "" {
		return nil, &quettyerr.ConfigurationError{Reason: "service bus namespace is required but empty"}
	}
	client, err := azservicebus.NewClient(namespace+".servicebus.windows.net", credential, nil)
	if err != nil {
		return nil, &quettyerr.ConnectionFailed{Reason: fmt.Sprintf("failed to create service bus client for namespace %s: %v", namespace, err)}
	}
	return client, nil
}
