package apiclient

var ResetDefaults = resetDefaults
