// internal/browser/scripts.go
package browser

// fatalErrorCheckScript resolves to {terminating: bool} or {loadError: string}.
// It checks whether the editor's global error handler decided to terminate.
const fatalErrorCheckScript = `new Promise(function (done) {
  window.onbeforeunload = function () {};

  if (typeof require === "undefined") {
    done({ loadError: "no require" });
    return;
  }

  if (!require.defined) {
    done({ loadError: "no require.defined" });
    return;
  }

  var onerrorDefined = require.defined("wed/onerror");

  define("undefined", function () { return undefined; });

  require([onerrorDefined ? "wed/onerror" : "undefined"], function (onerror) {
    var terminating = onerror && onerror.is_terminating();
    done({ terminating: !!terminating });
  }, function (err) {
    done({ loadError: err.toString() });
  });
})`

// deleteDatabaseScript resolves to [ok, message].
const deleteDatabaseScript = `new Promise(function (done) {
  var req = indexedDB.deleteDatabase("wed");
  req.onsuccess = function () { done([true, ""]); };
  req.onerror = function () { done([false, "Error!"]); };
  req.onblocked = function () { done([false, "Blocked!"]); };
})`

// drainLogScript returns and clears the page-side debug log.
const drainLogScript = `(function () {
  var log = window.selenium_log;
  window.selenium_log = [];
  return log || [];
})()`

// notificationScript is formatted with the JSON-encoded kind and text and
// resolves to [ok, message].
const notificationScript = `(function (kind, content) {
  var notification = document.querySelector("[data-notify='container']");
  if (!notification) {
    return [false, "there should be a notification"];
  }
  if (!notification.classList.contains("alert-" + kind)) {
    return [false, "the notification should be of kind " + kind];
  }
  var message = notification.querySelector("[data-notify='message']");
  if (!message) {
    return [false, "there should be a message"];
  }
  return [message.textContent === content, "the message should be " + content];
})(%s, %s)`
